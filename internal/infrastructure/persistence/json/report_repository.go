package json

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/compliance"
	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/security"
	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

const (
	auditLogName  = "audit.csv"
	hashExtension = ".sha256"
)

var auditLogHeader = []string{
	"timestamp",
	"id",
	"operator",
	"target",
	"profile",
	"status",
	"all_ok",
	"validation_errors",
	"profile_errors",
	"vulnerability_errors",
	"error",
	"duration_seconds",
}

// resultDTO is the on-disk form of an audit.Result
type resultDTO struct {
	ID         string                `json:"id"`
	Target     string                `json:"target"`
	Profile    string                `json:"profile"`
	Operator   string                `json:"operator,omitempty"`
	StartedAt  string                `json:"started_at"`
	DurationMS float64               `json:"duration_ms"`
	Report     *compliance.Report    `json:"report"`
	Snapshot   *observation.Snapshot `json:"snapshot,omitempty"`
}

// ReportRepository stores audit results as JSON files under a results
// directory. Every saved result gets a sha256 companion file, and Record
// keeps an append-only CSV trail of every audited target.
type ReportRepository struct {
	resultsDir string
	operator   string
	mu         sync.RWMutex
}

// NewReportRepository creates a JSON-based report repository
func NewReportRepository(resultsDir, operator string) (*ReportRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ReportRepository{
		resultsDir: resultsDir,
		operator:   operator,
	}, nil
}

// Dir returns the results directory.
func (r *ReportRepository) Dir() string {
	return r.resultsDir
}

// Save persists a result as <id>.json plus <id>.json.sha256
func (r *ReportRepository) Save(ctx context.Context, result *audit.Result) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(result)
}

func (r *ReportRepository) save(result *audit.Result) error {
	filePath, err := security.FileIn(r.resultsDir, result.ID.String()+".json")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(r.toDTO(result), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	if err := os.WriteFile(filePath, data, constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}

	sum := sha256.Sum256(data)
	hashContent := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), filepath.Base(filePath))
	if err := os.WriteFile(filePath+hashExtension, []byte(hashContent), constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write hash file: %w", err)
	}

	return nil
}

// Record saves the outcome's result, if any, and appends a row to the audit
// trail. Unreachable and failed targets get a row with the error text.
func (r *ReportRepository) Record(ctx context.Context, profileName string, outcome audit.Outcome, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome.Result != nil {
		if err := r.save(outcome.Result); err != nil {
			return err
		}
	}

	return r.appendEntry(r.toRecord(profileName, outcome, duration))
}

func (r *ReportRepository) appendEntry(record []string) error {
	filePath, err := security.FileIn(r.resultsDir, auditLogName)
	if err != nil {
		return err
	}

	fileExists := true
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		fileExists = false
	}

	// #nosec G304 -- path resolved within the results directory
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if !fileExists {
		if err := writer.Write(auditLogHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

func (r *ReportRepository) toRecord(profileName string, outcome audit.Outcome, duration time.Duration) []string {
	record := []string{
		time.Now().UTC().Format(time.RFC3339),
		"",
		r.operator,
		outcome.Target,
		profileName,
		outcome.Status(),
		"",
		"",
		"",
		"",
		"",
		fmt.Sprintf("%.3f", duration.Seconds()),
	}

	if res := outcome.Result; res != nil {
		record[1] = res.ID.String()
		if res.Profile != "" {
			record[4] = res.Profile
		}
		if rep := res.Report; rep != nil {
			record[6] = strconv.FormatBool(rep.AllOK)
			record[7] = strconv.Itoa(len(rep.ValidationErrors))
			record[8] = strconv.Itoa(len(rep.ProfileErrors))
			record[9] = strconv.Itoa(len(rep.VulnerabilityErrors))
		}
	}
	if outcome.Err != nil {
		record[10] = outcome.Err.Error()
	}

	return record
}

// FindByID loads a stored result.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*audit.Result, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrResultNotFound, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := security.FileIn(r.resultsDir, parsed.String()+".json")
	if err != nil {
		return nil, err
	}

	return r.loadFromFile(filePath)
}

// List returns every stored result, newest first.
func (r *ReportRepository) List(ctx context.Context) ([]*audit.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	results := make([]*audit.Result, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := uuid.Parse(strings.TrimSuffix(name, ".json")); err != nil {
			continue
		}

		result, err := r.loadFromFile(filepath.Join(r.resultsDir, name))
		if err != nil {
			continue
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})

	return results, nil
}

// Verify recomputes the hash of a stored result and compares it with its
// companion file.
func (r *ReportRepository) Verify(ctx context.Context, id string) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", sharedErrors.ErrResultNotFound, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := security.FileIn(r.resultsDir, parsed.String()+".json")
	if err != nil {
		return false, err
	}

	// #nosec G304 -- path resolved within the results directory
	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, sharedErrors.ErrResultNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to open result file: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return false, fmt.Errorf("failed to compute hash: %w", err)
	}

	// #nosec G304 -- path resolved within the results directory
	hashContent, err := os.ReadFile(filePath + hashExtension)
	if err != nil {
		return false, fmt.Errorf("failed to read hash file: %w", err)
	}

	fields := strings.Fields(string(hashContent))
	if len(fields) == 0 {
		return false, fmt.Errorf("empty hash file for %s", id)
	}

	return fields[0] == hex.EncodeToString(h.Sum(nil)), nil
}

func (r *ReportRepository) loadFromFile(filePath string) (*audit.Result, error) {
	// #nosec G304 -- callers resolve filePath within the results directory
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, sharedErrors.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var dto resultDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	return fromDTO(&dto)
}

func (r *ReportRepository) toDTO(result *audit.Result) *resultDTO {
	return &resultDTO{
		ID:         result.ID.String(),
		Target:     result.Target,
		Profile:    result.Profile,
		Operator:   r.operator,
		StartedAt:  result.StartedAt.Format(time.RFC3339Nano),
		DurationMS: float64(result.Duration) / float64(time.Millisecond),
		Report:     result.Report,
		Snapshot:   result.Snapshot,
	}
}

func fromDTO(dto *resultDTO) (*audit.Result, error) {
	id, err := uuid.Parse(dto.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid started_at: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	return &audit.Result{
		ID:        id,
		Target:    dto.Target,
		Profile:   dto.Profile,
		StartedAt: startedAt,
		Duration:  time.Duration(dto.DurationMS * float64(time.Millisecond)),
		Report:    dto.Report,
		Snapshot:  dto.Snapshot,
	}, nil
}
