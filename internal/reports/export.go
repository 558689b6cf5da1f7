package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"crowdwatch/internal/api"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Reports"
)

var exportHeader = []string{
	"ID", "Title", "Description", "Category", "Status",
	"Latitude", "Longitude", "Address",
	"Reporter", "Reporter Email", "Assigned Admin",
	"Admin Notes", "Additional Comments", "Photo URL",
	"Created At", "Status Updated At",
}

func exportRow(r *Report) []string {
	var reporter, email, assignee string
	if r.User != nil {
		reporter, email = r.User.Username, r.User.Email
	}
	if r.AssignedAdminUser != nil {
		assignee = r.AssignedAdminUser.Username
	} else if r.AssignedAdmin != nil {
		assignee = *r.AssignedAdmin
	}
	return []string{
		r.ID,
		r.Title,
		r.Description,
		string(r.Category),
		string(r.Status),
		strconv.FormatFloat(r.Location.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Location.Longitude, 'f', -1, 64),
		r.Location.Address,
		reporter,
		email,
		assignee,
		r.AdminNotes,
		r.AdditionalComments,
		r.PhotoURL,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.StatusUpdatedAt.UTC().Format(time.RFC3339),
	}
}

// collect loads every report with its references populated.
func (c *Common) collect(ctx context.Context) ([]Report, error) {
	var rs []Report
	if err := c.Store.Each(ctx, func(r *Report) error {
		rs = append(rs, *r)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := c.populate(ctx, rs); err != nil {
		c.Logger.WithError(err).Warn("populate export")
	}
	return rs, nil
}

func WriteCSV(w io.Writer, rs []Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range rs {
		if err := cw.Write(exportRow(&rs[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildXLSX renders the reports as a single-sheet workbook in memory.
func BuildXLSX(rs []Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i := range rs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(&rs[i])
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

func exportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("reports-%s.%s", now.Format("20060102"), ext)
}

// Export streams every report as CSV, or as XLSX with ?format=xlsx. A workbook
// that fails to build falls back to CSV.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	rs, err := h.collect(r.Context())
	if err != nil {
		api.ServerError(w, h.Logger, "Server error exporting reports", err)
		return
	}
	now := nowUTC()

	if r.URL.Query().Get("format") == "xlsx" {
		buf, err := BuildXLSX(rs)
		if err == nil {
			w.Header().Set("Content-Type", xlsxContentType)
			w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(now, "xlsx")+`"`)
			w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
			w.WriteHeader(http.StatusOK)
			_, _ = buf.WriteTo(w)
			return
		}
		h.Logger.WithError(err).Warn("build xlsx export, falling back to csv")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rs); err != nil {
		api.ServerError(w, h.Logger, "Server error exporting reports", err)
		return
	}
	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(now, "csv")+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
