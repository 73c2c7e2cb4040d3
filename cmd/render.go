package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/compliance"
	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

// outcomeView is the machine-readable form of one audited target.
type outcomeView struct {
	Target          string                `json:"target" yaml:"target"`
	Profile         string                `json:"profile" yaml:"profile"`
	Status          string                `json:"status" yaml:"status"`
	ID              string                `json:"id,omitempty" yaml:"id,omitempty"`
	StartedAt       string                `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	DurationSeconds float64               `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	Error           string                `json:"error,omitempty" yaml:"error,omitempty"`
	Report          *compliance.Report    `json:"report,omitempty" yaml:"report,omitempty"`
	Skipped         []string              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Snapshot        *observation.Snapshot `json:"snapshot,omitempty" yaml:"-"`
}

func newOutcomeView(profileName string, o audit.Outcome) outcomeView {
	v := outcomeView{
		Target:  o.Target,
		Profile: profileName,
		Status:  o.Status(),
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if r := o.Result; r != nil {
		v.ID = r.ID.String()
		v.Profile = r.Profile
		v.StartedAt = r.StartedAt.Format(time.RFC3339)
		v.DurationSeconds = r.Duration.Seconds()
		v.Report = r.Report
		v.Snapshot = r.Snapshot
		if r.Snapshot != nil {
			for _, s := range r.Snapshot.Skipped {
				v.Skipped = append(v.Skipped, s.String())
			}
		}
	}
	return v
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return configError("unknown output format %q (valid: %s, %s, %s)", format, formatText, formatJSON, formatYAML)
	}
}

func renderOutcomes(w io.Writer, format, profileName string, outcomes []audit.Outcome) error {
	views := make([]outcomeView, len(outcomes))
	for i, o := range outcomes {
		views[i] = newOutcomeView(profileName, o)
	}

	switch format {
	case formatJSON:
		return writeJSONOutput(w, views)
	case formatYAML:
		return writeYAMLOutput(w, views)
	default:
		for i, v := range views {
			if i > 0 {
				fmt.Fprintln(w)
			}
			renderOutcomeText(w, v, len(views) > 1)
		}
		return nil
	}
}

// renderOutcomeText prints the report block. With several targets each
// block gets a header line naming the target and its status.
func renderOutcomeText(w io.Writer, v outcomeView, withHeader bool) {
	if withHeader || v.Report == nil {
		fmt.Fprintf(w, "%s %s [%s] %s\n", colorInfo("→"), v.Target, v.Profile, formatStatusWithColor(v.Status))
	}
	if v.Report == nil {
		fmt.Fprintf(w, "  %s\n", v.Error)
		return
	}
	fmt.Fprintln(w, v.Report.String())
	if len(v.Skipped) > 0 {
		fmt.Fprintf(w, "\n%s not measured: %s\n", colorWarn("!"), strings.Join(v.Skipped, "; "))
	}
}

func writeJSONOutput(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAMLOutput(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// profileView flattens a profile's sets into sorted lists.
type profileView struct {
	Name       string   `json:"name" yaml:"name"`
	Protocols  []string `json:"protocols" yaml:"protocols"`
	Ciphers    []string `json:"ciphers" yaml:"ciphers"`
	MinHSTSAge int64    `json:"min_hsts_age" yaml:"min_hsts_age"`
}

func newProfileView(p profile.Profile) profileView {
	return profileView{
		Name:       p.Name,
		Protocols:  p.AllowedProtocols.Strings(),
		Ciphers:    p.AllowedCiphers.Sorted(),
		MinHSTSAge: p.MinHSTSAge,
	}
}

func renderProfile(w io.Writer, format string, p profile.Profile) error {
	v := newProfileView(p)
	switch format {
	case formatJSON:
		return writeJSONOutput(w, v)
	case formatYAML:
		return writeYAMLOutput(w, v)
	default:
		fmt.Fprintf(w, "Profile:      %s\n", v.Name)
		fmt.Fprintf(w, "Protocols:    %s\n", strings.Join(v.Protocols, ", "))
		fmt.Fprintf(w, "Min HSTS age: %d\n", v.MinHSTSAge)
		fmt.Fprintf(w, "Ciphers (%d):\n", len(v.Ciphers))
		for _, c := range v.Ciphers {
			fmt.Fprintf(w, "  %s\n", c)
		}
		return nil
	}
}
