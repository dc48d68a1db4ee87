package core

// template.go generates the canonical import workbook.
//
// Headers and dropdowns come from the same layouts the parser reads, so a
// filled-in template always maps with TemplateFarmerLayout.

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// templateRows is how many data rows carry dropdown validation.
const templateRows = 1000

// WriteTemplate writes a blank import workbook to w: a Farmers sheet, a
// Farms sheet, and a Validation Lists sheet with the allowed values. refs, if
// non-empty, adds the district and organization directories to the lists.
func WriteTemplate(w io.Writer, refs ReferenceData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", FarmersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(FarmsSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", FarmsSheet, err)
	}
	if _, err := f.NewSheet(ValidationListsSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", ValidationListsSheet, err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9EAD3"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	ranges, err := writeLists(f, refs, header)
	if err != nil {
		return err
	}
	if err := writeSheet(f, FarmersSheet, TemplateFarmerLayout, header, ranges); err != nil {
		return err
	}
	if err := writeSheet(f, FarmsSheet, FarmLayout, header, ranges); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

// writeSheet writes the header row and dropdowns of one sheet. Columns with
// Options get an inline list; columns with a List get a reference to that
// range of the Validation Lists sheet, when ranges has it.
func writeSheet[T any](f *excelize.File, sheet string, layout Layout[T], style int, ranges map[string]string) error {
	headers := layout.Headers()
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("%s headers: %w", sheet, err)
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for _, c := range layout.Columns {
		listRange := ranges[c.List]
		if len(c.Options) == 0 && listRange == "" {
			continue
		}
		col, err := excelize.ColumnNumberToName(c.Index + 1)
		if err != nil {
			return err
		}

		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", col, col, templateRows+1)
		if len(c.Options) > 0 {
			if err := dv.SetDropList(c.Options); err != nil {
				return fmt.Errorf("%s dropdown %s: %w", sheet, c.Field, err)
			}
		} else {
			// Inline lists are capped at 255 characters; a directory is not.
			dv.SetSqrefDropList(listRange)
		}
		dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid value", "Pick a value from the list")
		if err := f.AddDataValidation(sheet, dv); err != nil {
			return fmt.Errorf("%s dropdown %s: %w", sheet, c.Field, err)
		}
	}
	return nil
}

// writeLists fills the Validation Lists sheet and returns, by title, the
// absolute cell range of every non-empty list.
func writeLists(f *excelize.File, refs ReferenceData, style int) (map[string]string, error) {
	lists := []struct {
		title  string
		values []string
	}{
		{"Gender", enumStrings(Genders)},
		{"ID Type", enumStrings(IDTypes)},
		{"Soil Type", enumStrings(SoilTypes)},
		{"Yes/No", yesNo},
		{districtList, refNames(refs.Districts)},
		{organizationList, refNames(refs.Organizations)},
	}

	ranges := make(map[string]string, len(lists))
	for i, l := range lists {
		col := make([]any, 0, len(l.values)+1)
		col = append(col, l.title)
		for _, v := range l.values {
			col = append(col, v)
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetCol(ValidationListsSheet, cell, &col); err != nil {
			return nil, fmt.Errorf("validation list %s: %w", l.title, err)
		}
		if len(l.values) == 0 {
			continue
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		ranges[l.title] = fmt.Sprintf("'%s'!$%s$2:$%s$%d", ValidationListsSheet, name, name, len(l.values)+1)
	}

	last, err := excelize.ColumnNumberToName(len(lists))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ValidationListsSheet, "A", last, 24); err != nil {
		return nil, err
	}
	return ranges, f.SetRowStyle(ValidationListsSheet, 1, 1, style)
}

func refNames(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}
