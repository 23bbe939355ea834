package catalog

// MediaRecord is one playable catalog entry. ID is immutable once created and
// unique within its collection.
type MediaRecord struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Artist   string   `json:"artist" yaml:"artist"`
	Cover    string   `json:"cover" yaml:"cover"`
	URL      string   `json:"url" yaml:"url"`
	Duration string   `json:"duration" yaml:"duration"`
	Plays    int      `json:"plays" yaml:"plays"`
	Tags     []string `json:"tags" yaml:"tags"`
	BPM      *int     `json:"bpm,omitempty" yaml:"bpm,omitempty"`
}
