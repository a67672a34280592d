package domain

import (
	"encoding/json"
	"strings"
)

// ProductNameList accepts either a JSON array of names or a single
// comma-separated string.
type ProductNameList []string

func (l *ProductNameList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		names = strings.Split(joined, ",")
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	*l = out
	return nil
}
