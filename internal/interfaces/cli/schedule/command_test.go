package schedule

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/icubam/icubam/internal/interfaces/dto"
)

func pending() []dto.ScheduledMessage {
	return []dto.ScheduledMessage{{
		ICUID:    1,
		ICUName:  "CHU Strasbourg",
		UserID:   10,
		UserName: "Camille",
		Phone:    "+33600000000",
		Attempts: 1,
		When:     time.Date(2020, 4, 2, 9, 0, 0, 0, time.UTC),
	}}
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "table", pending()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^2020-04-02 09:00:00\s+CHU Strasbourg\s+Camille\s+\+33600000000\s+1$`, lines[1])
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "yaml", pending()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "CHU Strasbourg", got[0]["icu_name"])
	assert.Equal(t, 10, got[0]["user_id"])
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "json", pending()))

	var got []dto.ScheduledMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, pending(), got)
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, "xml", nil))
}
