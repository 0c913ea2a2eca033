package server

import (
	"context"
	"fmt"
	"testing"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[string]string

func (m mapLookup) Lookup(ctx context.Context, code string) (common.Entity, error) {
	if name, ok := m[code]; ok {
		return common.Entity{Code: code, Name: name}, nil
	}
	return common.Entity{}, fmt.Errorf("%w: %s", common.ErrUnknownEntity, code)
}

func TestMarkdownMentions(t *testing.T) {
	mc := NewMarkdownConverter(mapLookup{"KU091": "Helsinki", "SSS": "Finland"})

	tests := []struct {
		name     string
		source   string
		contains []string
	}{
		{
			name:     "known mention",
			source:   "See @KU091 for details.",
			contains: []string{`<p>See <a href="/?entity=KU091" class="entity-link">Helsinki</a> for details.</p>`},
		},
		{
			name:     "unknown mention stays text",
			source:   "Nothing at @KU000.",
			contains: []string{"<p>Nothing at @KU000.</p>"},
		},
		{
			name:     "several mentions",
			source:   "@SSS and @KU091",
			contains: []string{">Finland</a> and <a", ">Helsinki</a>"},
		},
		{
			name:     "code spans are left alone",
			source:   "`@KU091`",
			contains: []string{"<code>@KU091</code>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := mc.ConvertToHTML([]byte(tt.source))
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, string(html), c)
			}
		})
	}
}
