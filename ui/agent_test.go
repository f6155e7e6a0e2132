package ui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jyothri/mailpilot/agent"
	"github.com/jyothri/mailpilot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentFillComposeShowsInOpenUi(t *testing.T) {
	m, st, _ := newTestModel(t, 100)
	ts := httptest.NewServer(agent.NewHandler(agent.NewSurface(st, m.client)))
	defer ts.Close()

	body := `{"to":"jane@example.com","subject":"Quarterly report","body":"Numbers attached."}`
	resp, err := http.Post(ts.URL+"/actions/fillCompose", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Result, "Compose form filled")

	m = changed(m)
	assert.Equal(t, model.ViewCompose, m.state.View)
	assert.Equal(t, "jane@example.com", m.compose.to.Value())
	assert.Equal(t, "Quarterly report", m.compose.subject.Value())
	assert.Equal(t, "Numbers attached.", m.compose.body.Value())
	view := m.View()
	assert.Contains(t, view, "jane@example.com")
	assert.Contains(t, view, "Quarterly report")
}
