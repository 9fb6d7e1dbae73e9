package connectors

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"siges/internal/affiliates"
)

type Attachment struct {
	FileName string
	Content  []byte
}

// ExtractCSVAttachments returns the parts of a raw message that carry a bulk
// affiliate file. Parts whose name breaks the MS|MSCM|MC|MCCM+yyyymm.csv
// contract are returned by name in skipped.
func ExtractCSVAttachments(raw []byte) (files []Attachment, skipped []string, err error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}

	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)

	seen := map[string]struct{}{}
	for _, part := range parts {
		name := filepath.Base(strings.TrimSpace(part.FileName))
		if name == "" || name == "." || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if _, err := affiliates.ParseFileName(name); err != nil {
			skipped = append(skipped, name)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		files = append(files, Attachment{FileName: name, Content: part.Content})
	}
	return files, skipped, nil
}
