package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/a-h/templ"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestReview(t *testing.T) {
	valid := &core.StagedFarmer{
		RowNumber: 2,
		IsValid:   true,
		Data:      core.FarmerData{FirstName: "Kwame", LastName: "Asante", Phone: "+233241234567"},
		Farms:     []*core.StagedFarm{{RowNumber: 2, IsValid: true, Data: core.FarmData{Name: "North plot"}}},
	}
	invalid := &core.StagedFarmer{
		RowNumber: 3,
		Data:      core.FarmerData{FirstName: "Ama", LastName: "<b>Mensah</b>"},
		Errors:    []core.FieldError{{Field: "phone", Message: "Phone is required"}},
		Farms: []*core.StagedFarm{{
			RowNumber: 4,
			Data:      core.FarmData{Name: "River plot"},
			Errors:    []core.FieldError{{Field: "size", Message: "Size must be positive"}},
		}},
	}

	tests := []struct {
		name    string
		data    ReviewData
		want    []string
		notWant []string
	}{
		{
			name: "ready session",
			data: ReviewData{Snapshot: core.Snapshot{
				ID:       "abc",
				State:    core.StateStaged,
				FileName: "farmers.xlsx",
				Farmers:  []*core.StagedFarmer{valid},
				Stats:    core.Stats{Farmers: 1, ValidFarmers: 1, Farms: 1, Ready: true},
			}},
			want: []string{
				`action="/imports/abc/file"`,
				`action="/imports/abc/file/remove"`,
				`action="/imports/abc/commit"`,
				`<button type="submit">Commit valid farmers</button>`,
				"Kwame Asante",
				"North plot",
				`<span class="ok">ready</span>`,
			},
			notWant: []string{`class="invalid"`, `<button type="submit" disabled`, `role="alert"`},
		},
		{
			name: "invalid farmer blocks commit",
			data: ReviewData{Snapshot: core.Snapshot{
				ID:      "abc",
				State:   core.StateStaged,
				Farmers: []*core.StagedFarmer{invalid},
				Stats:   core.Stats{Farmers: 1, InvalidFarmers: 1, Farms: 1, InvalidFarms: 1},
			}},
			want: []string{
				`<tr class="invalid">`,
				`<button type="submit" disabled>`,
				`<ul class="errors">`,
				"<li>Phone is required</li>",
				"<li>Farm row 4: Size must be positive</li>",
				"Ama &lt;b&gt;Mensah&lt;/b&gt;",
			},
			notWant: []string{"<b>Mensah</b>", "/file/remove"},
		},
		{
			name: "alert and session error",
			data: ReviewData{
				Snapshot: core.Snapshot{ID: "abc", State: core.StateFailed, Error: core.ErrEmptyFile.Error()},
				Alert:    ErrorAlert("Upload failed", "Try again", "UPL001"),
			},
			want: []string{`role="alert"`, "Upload failed", "<code>UPL001</code>"},
		},
		{
			name: "last commit errors",
			data: ReviewData{Snapshot: core.Snapshot{
				ID:    "abc",
				State: core.StateDone,
				LastResult: &core.CommitResult{
					Successful: 3,
					Failed:     1,
					Errors:     []core.RowError{{Row: 5, Message: "duplicate phone", Data: core.FarmerData{FirstName: "Yaw"}}},
				},
			}},
			want: []string{"<h2>Last commit</h2>", "Committed: 3", "Failed: 1", "<td>5</td><td>Yaw</td><td>duplicate phone</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := renderString(t, Review(tt.data))
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
			for _, bad := range tt.notWant {
				if strings.Contains(body, bad) {
					t.Errorf("body contains %q", bad)
				}
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	tests := []struct {
		name string
		data DashboardData
		want []string
	}{
		{
			name: "empty",
			data: DashboardData{Limiter: core.LimiterStatus{MaxConcurrent: 4}},
			want: []string{
				`<input type="text" name="defaultOrganization"`,
				"No imports committed yet.",
				"Files parsing: 0 of 4",
			},
		},
		{
			name: "organizations and history",
			data: DashboardData{
				Organizations: []core.Ref{{ID: "org-1", Name: "Akim & Sons"}},
				Recent:        []core.ImportRecord{{FileName: "june.xlsx", Organization: "Akim", Successful: 12}},
				Sessions:      2,
			},
			want: []string{
				`<option value="org-1">Akim &amp; Sons</option>`,
				"<td>june.xlsx</td>",
				"<td>12</td>",
				"Open sessions: 2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := renderString(t, Dashboard(tt.data))
			if !strings.HasPrefix(body, "<!doctype html>") {
				t.Errorf("body does not start with a doctype: %.40q", body)
			}
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestErrorAlert_OmitsEmptyParts(t *testing.T) {
	body := renderString(t, ErrorAlert("Session not found", "", ""))
	if want := `<div class="alert" role="alert"><strong>Session not found</strong></div>`; body != want {
		t.Errorf("ErrorAlert = %q, want %q", body, want)
	}
}
