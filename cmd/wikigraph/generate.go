package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/wikigraph/extract"
)

const entityURIPrefix = "http://www.wikidata.org/entity/Q"

var words = []string{
	"river", "comet", "library", "harbor", "meadow", "lantern", "glacier", "orchard",
	"compass", "cathedral", "island", "ember", "citadel", "canyon", "falcon", "garden",
}

// generatedDatatypes cycles over property ids, so P1 is always a string property.
var generatedDatatypes = []string{
	"string",
	extract.DatatypeItem,
	"quantity",
	"globe-coordinate",
	"time",
	extract.DatatypeProperty,
}

type corpusShape struct {
	items      int
	properties int
	claims     int
	seed       uint64
}

type languageValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type snak struct {
	SnakType  string    `json:"snaktype"`
	Property  string    `json:"property"`
	Datatype  string    `json:"datatype"`
	DataValue dataValue `json:"datavalue"`
}

type dataValue struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

type statement struct {
	Type     string `json:"type"`
	Id       string `json:"id"`
	MainSnak snak   `json:"mainsnak"`
}

type record struct {
	Type     string                   `json:"type"`
	Id       string                   `json:"id"`
	Datatype string                   `json:"datatype,omitempty"`
	Labels   map[string]languageValue `json:"labels"`
	Claims   map[string][]statement   `json:"claims"`
}

func generateCommand(c *cli.Context) error {
	shape := corpusShape{
		items:      c.Int("items"),
		properties: c.Int("properties"),
		claims:     c.Int("claims"),
		seed:       c.Uint64("seed"),
	}
	if shape.items < 1 || shape.properties < 1 {
		return fmt.Errorf("items and properties must be greater than 0")
	}
	if shape.claims < 0 {
		return fmt.Errorf("claims must not be negative")
	}

	out := c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create corpus: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	n, err := writeCorpus(w, generateRecords(shape))
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	slog.Info("generated corpus", "records", humanize.Comma(n), "seed", shape.seed)
	return nil
}

// writeCorpus frames records the way full dumps are framed: one per line,
// comma terminated, inside a bracket pair.
func writeCorpus(w *bufio.Writer, records iter.Seq[record]) (int64, error) {
	if _, err := w.WriteString("[\n"); err != nil {
		return 0, err
	}
	var n int64
	var prev []byte
	for rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return n, err
		}
		if prev != nil {
			if err := writeLine(w, prev, ","); err != nil {
				return n, err
			}
		}
		prev = line
		n++
	}
	if prev != nil {
		if err := writeLine(w, prev, ""); err != nil {
			return n, err
		}
	}
	_, err := w.WriteString("]\n")
	return n, err
}

func writeLine(w *bufio.Writer, line []byte, suffix string) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	_, err := w.WriteString(suffix + "\n")
	return err
}

// generateRecords yields the properties first, then the items.
func generateRecords(shape corpusShape) iter.Seq[record] {
	return func(yield func(record) bool) {
		rng := rand.New(rand.NewPCG(shape.seed, shape.seed^0x9e3779b97f4a7c15))

		for i := 1; i <= shape.properties; i++ {
			rec := record{
				Type:     "property",
				Id:       "P" + strconv.Itoa(i),
				Datatype: propertyDatatype(i),
				Labels:   english(words[(i-1)%len(words)] + " " + strconv.Itoa(i)),
				Claims:   map[string][]statement{},
			}
			if !yield(rec) {
				return
			}
		}

		for i := 1; i <= shape.items; i++ {
			id := "Q" + strconv.Itoa(i)
			rec := record{
				Type:   "item",
				Id:     id,
				Labels: english(words[rng.IntN(len(words))] + " " + strconv.Itoa(i)),
				Claims: map[string][]statement{},
			}
			for j := range shape.claims {
				p := 1 + rng.IntN(shape.properties)
				property := "P" + strconv.Itoa(p)
				rec.Claims[property] = append(rec.Claims[property], statement{
					Type:     "statement",
					Id:       fmt.Sprintf("%s$%d", id, j),
					MainSnak: generateSnak(rng, property, propertyDatatype(p), shape),
				})
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func propertyDatatype(p int) string {
	return generatedDatatypes[(p-1)%len(generatedDatatypes)]
}

func english(label string) map[string]languageValue {
	return map[string]languageValue{"en": {Language: "en", Value: label}}
}

func generateSnak(rng *rand.Rand, property, datatype string, shape corpusShape) snak {
	s := snak{SnakType: "value", Property: property, Datatype: datatype}
	switch datatype {
	case extract.DatatypeItem:
		s.DataValue = dataValue{
			Type:  "wikibase-entityid",
			Value: map[string]any{"entity-type": "item", "numeric-id": 1 + rng.IntN(shape.items)},
		}
	case extract.DatatypeProperty:
		s.DataValue = dataValue{
			Type:  "wikibase-entityid",
			Value: map[string]any{"entity-type": "property", "numeric-id": 1 + rng.IntN(shape.properties)},
		}
	case "quantity":
		s.DataValue = dataValue{
			Type: "quantity",
			Value: map[string]any{
				"amount": fmt.Sprintf("+%d", rng.IntN(1000)),
				"unit":   entityURIPrefix + strconv.Itoa(1+rng.IntN(shape.items)),
			},
		}
	case "globe-coordinate":
		s.DataValue = dataValue{
			Type: "globecoordinate",
			Value: map[string]any{
				"latitude":  rng.Float64()*180 - 90,
				"longitude": rng.Float64()*360 - 180,
				"precision": 0.0001,
				"globe":     entityURIPrefix + "1",
			},
		}
	case "time":
		s.DataValue = dataValue{
			Type: "time",
			Value: map[string]any{
				"time":          fmt.Sprintf("+%04d-01-01T00:00:00Z", 1500+rng.IntN(525)),
				"precision":     9,
				"calendarmodel": entityURIPrefix + "1985727",
			},
		}
	default:
		s.DataValue = dataValue{Type: "string", Value: words[rng.IntN(len(words))]}
	}
	return s
}
