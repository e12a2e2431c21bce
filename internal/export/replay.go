package export

import "github.com/harunnryd/metsuke/internal/interaction"

// ReplaySource serves journal records back as an interaction source, so the
// validator can audit an exported data set offline.
type ReplaySource struct {
	records []*interaction.Interaction
}

func NewReplaySource(records []*interaction.Interaction) *ReplaySource {
	return &ReplaySource{records: records}
}

// History returns the records that reached a terminal state, in journal
// order.
func (r *ReplaySource) History() []*interaction.Interaction {
	var out []*interaction.Interaction
	for _, rec := range r.records {
		if rec.Status.Terminal() {
			out = append(out, rec)
		}
	}
	return out
}

// PendingIDs returns ids of records that never reached a terminal state.
func (r *ReplaySource) PendingIDs() []string {
	var out []string
	for _, rec := range r.records {
		if !rec.Status.Terminal() {
			out = append(out, rec.ID)
		}
	}
	return out
}
