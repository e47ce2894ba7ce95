// SPDX-License-Identifier: Apache-2.0

package dipchart

import (
	"log/slog"

	"github.com/atgproj/atg-mcp/internal/logging"
)

// Pipeline runs every registered decoder over a chart and keeps the candidate
// with the most entries.
type Pipeline struct {
	decoders []Decoder
}

// NewPipeline creates a Pipeline. Decoder order is the tie-break priority:
// on equal entry counts the earlier decoder wins.
func NewPipeline(decoders ...Decoder) *Pipeline {
	return &Pipeline{decoders: decoders}
}

// CandidateSummary records how many entries a decoder produced.
type CandidateSummary struct {
	Method  Method `json:"method"`
	Entries int    `json:"entries"`
}

// Result is the output of a reconstruction.
type Result struct {
	Table      Table              `json:"table"`
	Method     Method             `json:"method,omitempty"`
	Candidates []CandidateSummary `json:"candidates"`
	TokenCount int                `json:"token_count"`
	RowCount   int                `json:"row_count"`
}

// Empty reports whether no decoder produced a usable entry.
func (r Result) Empty() bool { return len(r.Table) == 0 }

// Run tokenizes text and selects the best candidate. It never fails: input
// nobody can decode yields an empty table.
func (p *Pipeline) Run(text string, limits Limits) Result {
	tokens := Tokenize(text)
	log := logging.Logger()
	log.Debug("tokenized chart",
		slog.Int("tokens", len(tokens.All)),
		slog.Int("concatenated_rows", len(tokens.Rows)))

	res := Result{
		Table:      Table{},
		TokenCount: len(tokens.All),
		RowCount:   len(tokens.Rows),
	}

	var best *Candidate
	for _, d := range p.decoders {
		if !d.CanHandle(tokens) {
			continue
		}
		c := d.Decode(tokens, limits)
		log.Debug("decoder finished", slog.String("method", string(c.Method)), slog.Int("entries", len(c.Pairs)))
		res.Candidates = append(res.Candidates, CandidateSummary{Method: c.Method, Entries: len(c.Pairs)})
		if best == nil || len(c.Pairs) > len(best.Pairs) {
			best = &c
		}
	}

	if best == nil || len(best.Pairs) == 0 {
		log.Info("no decoder produced usable entries", slog.Int("tokens", len(tokens.All)))
		return res
	}

	res.Table = best.Pairs
	res.Method = best.Method
	log.Info("chart reconstructed",
		slog.String("method", string(best.Method)),
		slog.Int("entries", len(best.Pairs)),
		slog.Int("min_depth", best.Pairs.First().Depth),
		slog.Int("max_depth", best.Pairs.Last().Depth))
	return res
}

// RegisteredDecoders returns the methods of all registered decoders in
// priority order.
func (p *Pipeline) RegisteredDecoders() []Method {
	names := make([]Method, len(p.decoders))
	for i, d := range p.decoders {
		names[i] = d.Method()
	}
	return names
}
