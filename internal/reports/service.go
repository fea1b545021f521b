package reports

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/reports/export"
	"rc-portal/allocation-portal-backend/internal/requests"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Service renders request records into downloadable reports for admin
// tooling. Reads only; it never mutates request state.
type Service struct {
	store  requests.Store
	logger *zap.Logger
}

func NewService(store requests.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

var renewalColumns = []string{
	"id", "status", "requester", "pi", "project", "period",
	"num_service_units", "request_time", "approval_time",
	"completion_time", "latest_update",
}

// ExportRenewals writes all renewal requests matching the given
// statuses to w in the chosen format.
func (s *Service) ExportRenewals(ctx context.Context, w io.Writer, format Format, statuses ...requests.RequestStatus) error {
	reqs, err := s.store.ListRenewalRequests(ctx, statuses...)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(reqs))
	for _, req := range reqs {
		requester, err := s.store.GetUser(ctx, req.RequesterID)
		if err != nil {
			return err
		}
		pi, err := s.store.GetUser(ctx, req.PIID)
		if err != nil {
			return err
		}
		project, err := s.store.GetProject(ctx, req.PostProjectID)
		if err != nil {
			return err
		}
		period, err := s.store.GetAllocationPeriod(ctx, req.AllocationPeriodID)
		if err != nil {
			return err
		}
		latest, err := requests.RenewalLatestUpdateTimestamp(ctx, s.store, req)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			req.ID.String(), string(req.Status),
			requester.Username, pi.Username, project.Name, period.Name,
			req.NumServiceUnits.String(), req.RequestTime,
			req.ApprovalTime, req.CompletionTime, latest,
		})
	}
	return s.write(w, format, renewalColumns, rows)
}

var newProjectColumns = []string{
	"id", "status", "requester", "pi", "project", "period", "pool",
	"num_service_units", "request_time", "approval_time", "completion_time",
}

// ExportNewProjects writes all new-project requests matching the given
// statuses to w in the chosen format.
func (s *Service) ExportNewProjects(ctx context.Context, w io.Writer, format Format, statuses ...requests.RequestStatus) error {
	reqs, err := s.store.ListNewProjectRequests(ctx, statuses...)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(reqs))
	for _, req := range reqs {
		requester, err := s.store.GetUser(ctx, req.RequesterID)
		if err != nil {
			return err
		}
		pi, err := s.store.GetUser(ctx, req.PIID)
		if err != nil {
			return err
		}
		project, err := s.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		period, err := s.store.GetAllocationPeriod(ctx, req.AllocationPeriodID)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			req.ID.String(), string(req.Status),
			requester.Username, pi.Username, project.Name, period.Name,
			req.Pool, req.NumServiceUnits.String(), req.RequestTime,
			req.ApprovalTime, req.CompletionTime,
		})
	}
	return s.write(w, format, newProjectColumns, rows)
}

var secureDirColumns = []string{
	"id", "status", "requester", "project", "directory_name",
	"department", "request_time", "completion_time",
}

// ExportSecureDirs writes all secure-directory requests matching the
// given statuses to w in the chosen format.
func (s *Service) ExportSecureDirs(ctx context.Context, w io.Writer, format Format, statuses ...requests.RequestStatus) error {
	reqs, err := s.store.ListSecureDirRequests(ctx, statuses...)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(reqs))
	for _, req := range reqs {
		requester, err := s.store.GetUser(ctx, req.RequesterID)
		if err != nil {
			return err
		}
		project, err := s.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			req.ID.String(), string(req.Status),
			requester.Username, project.Name, req.DirectoryName,
			req.Department, req.RequestTime, req.CompletionTime,
		})
	}
	return s.write(w, format, secureDirColumns, rows)
}

func (s *Service) write(w io.Writer, format Format, columns []string, rows [][]any) error {
	switch format {
	case FormatCSV, "":
		exporter := export.NewCSVExporter(w, export.DefaultCSVOptions())
		if err := exporter.WriteHeader(columns); err != nil {
			return err
		}
		for _, row := range rows {
			if err := exporter.WriteRow(row); err != nil {
				return err
			}
		}
		return exporter.Flush()
	case FormatXLSX:
		exporter := export.NewExcelExporter(export.DefaultExcelOptions())
		defer exporter.Close()
		if err := exporter.WriteHeader(columns); err != nil {
			return err
		}
		for _, row := range rows {
			if err := exporter.WriteRow(row); err != nil {
				return err
			}
		}
		return exporter.WriteTo(w)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
