package cron_feature

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var configColumns = []string{
	"Name", "Category", "Schedule", "Timezone", "Enabled", "Priority", "Scripts",
	"Runs", "Errors", "Error rate", "Avg run time (ms)", "Last run", "Next run",
}

var scriptColumns = []string{"Config", "Script", "Module", "Enabled", "Order"}

func (s *CronServiceImpl) Export(ctx context.Context) ([]byte, string, error) {
	configs, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, "", err
	}
	data, err := ExportToExcel(configs)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("cron-configs-%s.xlsx", time.Now().UTC().Format("20060102"))
	return data, filename, nil
}

// ExportToExcel writes one row per config on the first sheet and one row per
// script on the second.
func ExportToExcel(configs []*CronConfig) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const configSheet, scriptSheet = "Configs", "Scripts"
	if err := f.SetSheetName("Sheet1", configSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(scriptSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	writeHeader := func(sheet string, columns []string) {
		for i, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, col)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
	}
	writeHeader(configSheet, configColumns)
	writeHeader(scriptSheet, scriptColumns)

	scriptRow := 2
	for i, c := range configs {
		row := []any{
			c.Name, string(c.Category), c.Schedule, c.Timezone, c.Enabled, c.Priority, len(c.Scripts),
			c.Stats.RunCount, c.Stats.ErrorCount, c.ErrorRate(), c.Stats.AverageRunTime,
			formatTime(c.Stats.LastRun), c.NextRunFormatted(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(configSheet, cell, &row); err != nil {
			return nil, err
		}

		for _, s := range c.Scripts {
			srow := []any{c.Name, s.Name, s.ModulePath, s.Enabled, s.Order}
			cell, _ := excelize.CoordinatesToCellName(1, scriptRow)
			if err := f.SetSheetRow(scriptSheet, cell, &srow); err != nil {
				return nil, err
			}
			scriptRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
