package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/shared/authorization"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// UserColumns is the layout of a users CSV file.
var UserColumns = []string{"icu_name", "name", "telephone", "description"}

// ImportStore is the write side of the repository used by CSV imports.
type ImportStore interface {
	GetOrCreateRegion(ctx context.Context, name string) (*icu.Region, error)
	AddICU(ctx context.Context, caller *user.User, i *icu.ICU) (int64, error)
	GetICUByName(ctx context.Context, name string) (*icu.ICU, error)
	AddUser(ctx context.Context, caller *user.User, u *user.User) (int64, error)
}

// RowError locates a rejected line; Line counts the header as line 1.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportReport summarizes an import.
type ImportReport struct {
	Added   int
	Skipped int
	Errors  []RowError
}

type icuRow struct {
	Name      string  `csv:"name" validate:"required"`
	Region    string  `csv:"region"`
	Dept      string  `csv:"dept"`
	City      string  `csv:"city"`
	Lat       float64 `csv:"lat" validate:"latitude"`
	Long      float64 `csv:"long" validate:"longitude"`
	Telephone string  `csv:"telephone"`
}

type userRow struct {
	ICUName     string `csv:"icu_name" validate:"required"`
	Name        string `csv:"name" validate:"required"`
	Telephone   string `csv:"telephone" validate:"required"`
	Description string `csv:"description"`
}

// Importer loads ICUs and users from the CSV layouts of the data API.
type Importer struct {
	store  ImportStore
	caller *user.User
	logger logger.Interface
}

// NewImporter runs imports as caller, which must be allowed to add ICUs
// and users.
func NewImporter(store ImportStore, caller *user.User, log logger.Interface) *Importer {
	return &Importer{store: store, caller: caller, logger: log}
}

// ImportICUs adds one ICU per row, creating regions on demand. ICUs whose
// name already exists are skipped.
func (im *Importer) ImportICUs(ctx context.Context, r io.Reader) (*ImportReport, error) {
	report := &ImportReport{}
	err := readRows(r, ICUColumns, func(line int, rec map[string]string) {
		row, err := parseICURow(rec)
		if err == nil {
			err = utils.ValidateStruct(row)
		}
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			return
		}

		i := &icu.ICU{
			Name:     row.Name,
			Dept:     row.Dept,
			City:     row.City,
			Lat:      row.Lat,
			Lng:      row.Long,
			Phone:    row.Telephone,
			IsActive: true,
		}
		if row.Region != "" {
			region, err := im.store.GetOrCreateRegion(ctx, row.Region)
			if err != nil {
				report.Errors = append(report.Errors, RowError{Line: line, Err: err})
				return
			}
			i.RegionID = region.ID
		}

		if _, err := im.store.AddICU(ctx, im.caller, i); err != nil {
			if errors.Is(err, access.ErrConflict) {
				report.Skipped++
				return
			}
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			return
		}
		report.Added++
	})
	if err != nil {
		return report, err
	}
	im.logger.Infow("icus imported", "added", report.Added, "skipped", report.Skipped, "errors", len(report.Errors))
	return report, nil
}

// ImportUsers adds one operator per row, assigned to the ICU named in
// icu_name.
func (im *Importer) ImportUsers(ctx context.Context, r io.Reader) (*ImportReport, error) {
	report := &ImportReport{}
	icuIDs := map[string]int64{}

	err := readRows(r, UserColumns, func(line int, rec map[string]string) {
		row := &userRow{
			ICUName:     rec["icu_name"],
			Name:        rec["name"],
			Telephone:   rec["telephone"],
			Description: rec["description"],
		}
		if err := utils.ValidateStruct(row); err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			return
		}

		icuID, ok := icuIDs[row.ICUName]
		if !ok {
			i, err := im.store.GetICUByName(ctx, row.ICUName)
			if err != nil {
				report.Errors = append(report.Errors, RowError{Line: line, Err: err})
				return
			}
			icuID = i.ID
			icuIDs[row.ICUName] = icuID
		}

		u := &user.User{
			Name:        row.Name,
			Phone:       row.Telephone,
			Description: row.Description,
			Role:        authorization.RoleOperator,
			IsActive:    true,
			ICUIDs:      []int64{icuID},
		}
		if _, err := im.store.AddUser(ctx, im.caller, u); err != nil {
			if errors.Is(err, access.ErrConflict) {
				report.Skipped++
				return
			}
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			return
		}
		report.Added++
	})
	if err != nil {
		return report, err
	}
	im.logger.Infow("users imported", "added", report.Added, "skipped", report.Skipped, "errors", len(report.Errors))
	return report, nil
}

func parseICURow(rec map[string]string) (*icuRow, error) {
	row := &icuRow{
		Name:      rec["name"],
		Region:    rec["region"],
		Dept:      rec["dept"],
		City:      rec["city"],
		Telephone: rec["telephone"],
	}
	var err error
	if row.Lat, err = parseCoordinate(rec["lat"]); err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	if row.Long, err = parseCoordinate(rec["long"]); err != nil {
		return nil, fmt.Errorf("long: %w", err)
	}
	return row, nil
}

func parseCoordinate(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// readRows checks that the header holds every column of want, in any order,
// then calls fn with each record keyed by column name.
func readRows(r io.Reader, want []string, fn func(line int, rec map[string]string)) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range want {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("csv header is missing column %q", name)
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		rec := make(map[string]string, len(want))
		for _, name := range want {
			if i := index[name]; i < len(record) {
				rec[name] = strings.TrimSpace(record[i])
			}
		}
		fn(line, rec)
	}
}
