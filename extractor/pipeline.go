package extractor

import "github.com/use-agent/xfeed/models"

// Result is the outcome of one pipeline run.
type Result struct {
	// Posts is the assembled result set.
	Posts []models.PostRecord

	// Candidates is the number of post containers located.
	Candidates int

	// Rejected counts candidates dropped by Normalize.
	Rejected int
}

// Run parses markup and runs the pipeline over it. The only error is a
// failure to build the tree; per-candidate problems only drop candidates.
func Run(markup string, opts Options) (*Result, error) {
	sel := opts.Selectors
	if sel == (Selectors{}) {
		sel = DefaultSelectors()
	}
	tree, err := NewTreeFromString(markup, sel)
	if err != nil {
		return nil, err
	}
	return RunTree(tree, opts), nil
}

// RunTree runs locate, extract, normalize and assemble over t.
func RunTree(t Tree, opts Options) *Result {
	res := &Result{}
	var accepted []models.PostRecord
	for c := range t.LocatePosts() {
		res.Candidates++
		rec, err := Normalize(ExtractFields(t, c), opts)
		if err != nil {
			res.Rejected++
			continue
		}
		accepted = append(accepted, rec)
	}
	res.Posts = Assemble(accepted, opts.Policy.MaxPosts)
	return res
}

// Assemble keeps the first record for every id, preserving input order, and
// truncates to limit records. A non-positive limit means no cap. The returned
// slice is never nil.
func Assemble(posts []models.PostRecord, limit int) []models.PostRecord {
	out := make([]models.PostRecord, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
