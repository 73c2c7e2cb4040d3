package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/collector"
	"github.com/khanhnv2901/tlsprofiler/internal/compliance"
	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

func disableColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})
}

func sampleOutcomes() []audit.Outcome {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Outcome{
		{
			Target: "good.example:443",
			Result: &audit.Result{
				ID:        uuid.MustParse("5f0c3a1e-8d7b-4c2a-9e1f-2b3c4d5e6f70"),
				Target:    "good.example:443",
				Profile:   "intermediate",
				StartedAt: started,
				Duration:  1500 * time.Millisecond,
				Report:    compliance.BuildReport(nil, nil, nil, nil),
			},
		},
		{
			Target: "down.example:443",
			Err:    &collector.ConnectivityError{Target: "down.example:443", Cause: errors.New("connection refused")},
		},
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{formatText, formatJSON, formatYAML} {
		assert.NoError(t, validateFormat(f))
	}
	err := validateFormat("xml")
	require.Error(t, err)
	assert.Equal(t, ExitConfig, exitCodeFor(err))
}

func TestRenderOutcomesTextSingleTarget(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer
	require.NoError(t, renderOutcomes(&buf, formatText, "intermediate", sampleOutcomes()[:1]))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Validation Errors: []"), out)
	assert.Contains(t, out, "All ok: true")
	assert.NotContains(t, out, "good.example:443")
}

func TestRenderOutcomesTextMultipleTargets(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer
	require.NoError(t, renderOutcomes(&buf, formatText, "intermediate", sampleOutcomes()))

	out := buf.String()
	assert.Contains(t, out, "good.example:443 [intermediate] ok")
	assert.Contains(t, out, "down.example:443 [intermediate] unreachable")
	assert.Contains(t, out, "could not connect to down.example:443: connection refused")
}

func TestRenderOutcomesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcomes(&buf, formatJSON, "intermediate", sampleOutcomes()))

	var views []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &views))
	require.Len(t, views, 2)

	assert.Equal(t, "ok", views[0]["status"])
	assert.Equal(t, "5f0c3a1e-8d7b-4c2a-9e1f-2b3c4d5e6f70", views[0]["id"])
	assert.Equal(t, 1.5, views[0]["duration_seconds"])
	report, ok := views[0]["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, report["all_ok"])

	assert.Equal(t, "unreachable", views[1]["status"])
	assert.NotContains(t, views[1], "report")
}

func TestRenderOutcomesYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcomes(&buf, formatYAML, "intermediate", sampleOutcomes()))

	var views []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "good.example:443", views[0]["target"])
	assert.Equal(t, "unreachable", views[1]["status"])
	assert.NotContains(t, buf.String(), "snapshot")
}

func TestRenderProfile(t *testing.T) {
	doc, err := profile.ParseDocument(mustReadTestProfiles(t))
	require.NoError(t, err)
	p, err := doc.Lookup("modern")
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, renderProfile(&text, formatText, p))
	assert.Contains(t, text.String(), "Profile:      modern")
	assert.Contains(t, text.String(), "TLSv1.3")
	assert.Contains(t, text.String(), "TLS_AES_128_GCM_SHA256")

	var js bytes.Buffer
	require.NoError(t, renderProfile(&js, formatJSON, p))
	var view profileView
	require.NoError(t, json.Unmarshal(js.Bytes(), &view))
	assert.Equal(t, "modern", view.Name)
	assert.Equal(t, []string{"TLSv1.3"}, view.Protocols)
	assert.Equal(t, int64(63072000), view.MinHSTSAge)
}

func TestRenderOutcomesSkippedIsIncomplete(t *testing.T) {
	disableColor(t)

	outcome := sampleOutcomes()[0]
	outcome.Result.Snapshot = &observation.Snapshot{
		Target:  "good.example:443",
		Skipped: []observation.ProbeFailure{{Probe: observation.ProbeRobot, Err: "not testable"}},
	}
	others := sampleOutcomes()[1:]

	var buf bytes.Buffer
	require.NoError(t, renderOutcomes(&buf, formatText, "intermediate", append([]audit.Outcome{outcome}, others...)))

	out := buf.String()
	assert.Contains(t, out, "good.example:443 [intermediate] incomplete")
	assert.Contains(t, out, "not measured:")
}
