package core

// mapping.go converts raw sheet rows into staged records.
//
// Row numbers are spreadsheet row numbers: the header is row 1, so the row at
// slice index i becomes rowNumber i+1. Farms join to farmers on that number.
// Mapping never fails on cell content; see convert.go.

import (
	"math"

	"github.com/google/uuid"
)

// MapFarmers maps every non-blank data row of the Farmers sheet. The layout
// is chosen from the header row.
func MapFarmers(rows [][]string) []*StagedFarmer {
	if len(rows) == 0 {
		return nil
	}

	layout := DetectFarmerLayout(rows[0])
	farmers := make([]*StagedFarmer, 0, len(rows)-1)

	for i := 1; i < len(rows); i++ {
		if IsBlankRow(rows[i]) {
			continue
		}

		f := &StagedFarmer{
			ID:        uuid.NewString(),
			RowNumber: i + 1,
			Farms:     []*StagedFarm{},
		}
		layout.Apply(&f.Data, rows[i])
		farmers = append(farmers, f)
	}

	return farmers
}

// MapFarms maps the Farms sheet and attaches each farm to the farmer whose
// RowNumber equals the farm's farmerRow cell. Farms that reference no staged
// farmer are dropped.
func MapFarms(rows [][]string, farmers []*StagedFarmer) {
	if len(rows) < 2 || len(farmers) == 0 {
		return
	}

	byRow := make(map[int]*StagedFarmer, len(farmers))
	for _, f := range farmers {
		byRow[f.RowNumber] = f
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if IsBlankRow(row) {
			continue
		}

		ref, ok := parseFarmerRow(cellAt(row, farmerRowIndex))
		if !ok {
			continue
		}
		owner, ok := byRow[ref]
		if !ok {
			continue
		}

		farm := &StagedFarm{
			ID:        uuid.NewString(),
			RowNumber: i + 1,
			FarmerRow: ref,
		}
		FarmLayout.Apply(&farm.Data, row)
		owner.Farms = append(owner.Farms, farm)
	}
}

// parseFarmerRow reads the farm-to-farmer back-reference. Spreadsheets often
// store it as a float ("2.0"), which is accepted when whole.
func parseFarmerRow(s string) (int, bool) {
	f := ToPgFloat8(s)
	if !f.Valid || f.Float64 != math.Trunc(f.Float64) || f.Float64 < 1 || f.Float64 > math.MaxInt32 {
		return 0, false
	}
	return int(f.Float64), true
}

// MapWorkbook maps both sheets of wb.
func MapWorkbook(wb *Workbook) []*StagedFarmer {
	farmers := MapFarmers(wb.Farmers)
	MapFarms(wb.Farms, farmers)
	return farmers
}
