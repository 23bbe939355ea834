package metrics

const namespace = "mediagw"

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
