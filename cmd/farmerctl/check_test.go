package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/store"
)

const header = "First Name,Last Name,Phone,Email,Date of Birth,Gender,Community,Address,District,ID Type,ID Number,Household Size,Leader,Smartphone,Legacy ID\n"

const kwame = "Kwame,Asante,+233244123456,,1985-03-15,male,Akim Oda,House 12,Birim Central,ghana_card,GHA-123456789-0,5,Yes,Yes,\n"

const badGender = "Ama,Mensah,+233201112223,,1990-07-01,unknown,Asamankese,Plot 7 Market Rd,Birim Central,voters_id,VID-99812,,no,no,\n"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farmers.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func directory() *store.Memory {
	return store.NewMemory(core.ReferenceData{
		Districts:     []core.Ref{{ID: "d-1", Name: "Birim Central"}},
		Organizations: []core.Ref{{ID: "o-1", Name: "Akim Cocoa Cooperative"}},
	})
}

func TestRunCheck(t *testing.T) {
	ctx := context.Background()

	var out bytes.Buffer
	if err := runCheck(ctx, &out, directory(), writeFile(t, header+kwame), runOptions{}); err != nil {
		t.Fatalf("clean file: %v", err)
	}
	if !strings.Contains(out.String(), "No problems found") {
		t.Errorf("report = %s", out.String())
	}

	out.Reset()
	err := runCheck(ctx, &out, directory(), writeFile(t, header+kwame+badGender), runOptions{})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 farmers") {
		t.Errorf("err = %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "gender") || !strings.Contains(report, "Ama Mensah") {
		t.Errorf("report missing the gender problem:\n%s", report)
	}
}

func TestRunCheck_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := runCheck(context.Background(), &out, directory(), writeFile(t, header+kwame), runOptions{asJSON: true}); err != nil {
		t.Fatal(err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("output is not a snapshot: %v", err)
	}
	if snap.Stats.Farmers != 1 || snap.FileName != "farmers.csv" {
		t.Errorf("snapshot = %+v", snap.Stats)
	}
}

func TestRunCheck_Unreadable(t *testing.T) {
	err := runCheck(context.Background(), &bytes.Buffer{}, directory(), writeFile(t, ""), runOptions{})
	if err == nil || !strings.Contains(err.Error(), "farmers.csv") {
		t.Errorf("err = %v", err)
	}
}

func TestRunImport(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, header+kwame+badGender)

	st := directory()
	var out bytes.Buffer
	if err := runImport(ctx, &out, st, path, runOptions{organization: "Akim Cocoa Cooperative"}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out.String(), "Dry run: 1 farmers would be committed") {
		t.Errorf("dry run output:\n%s", out.String())
	}
	if n := len(st.Farmers()); n != 0 {
		t.Fatalf("dry run wrote %d farmers", n)
	}

	out.Reset()
	if err := runImport(ctx, &out, st, path, runOptions{organization: "Akim Cocoa Cooperative", apply: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out.String(), "Committed 1, failed 0, skipped 1") {
		t.Errorf("apply output:\n%s", out.String())
	}
	stored := st.Farmers()
	if len(stored) != 1 || stored[0].OrganizationID != "o-1" {
		t.Errorf("stored = %+v", stored)
	}

	recs, _ := st.RecentImports(ctx, 1)
	if len(recs) != 1 || !strings.HasPrefix(recs[0].Actor, "farmerctl") {
		t.Errorf("import log = %+v", recs)
	}

	// Re-importing the same file hits the phone uniqueness check.
	out.Reset()
	err := runImport(ctx, &out, st, path, runOptions{organization: "o-1", apply: true})
	if err == nil || !strings.Contains(out.String(), "row 2") {
		t.Errorf("re-import err = %v\n%s", err, out.String())
	}
}

func TestRunImport_UnknownOrganization(t *testing.T) {
	err := runImport(context.Background(), &bytes.Buffer{}, directory(), writeFile(t, header+kwame), runOptions{organization: "Nobody"})
	if err == nil {
		t.Fatal("unknown organization accepted")
	}
}

func TestWriteDirectory(t *testing.T) {
	var out bytes.Buffer
	refs, _ := directory().LoadReferenceData(context.Background())
	if err := writeDirectory(&out, refs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "district") || !strings.Contains(out.String(), "Akim Cocoa Cooperative") {
		t.Errorf("directory:\n%s", out.String())
	}
}
