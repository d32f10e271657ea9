package db

import (
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// PrintMaxDataLength max length a payload can have when printing as table
const PrintMaxDataLength = 80

// PrintScanTable prints a list of scans as a table
func PrintScanTable(records []*Scan) {
	var tableData [][]string
	for _, record := range records {
		endTime := ""
		if record.EndTime != nil {
			endTime = record.EndTime.Format("2006-01-02 15:04:05")
		}
		tableData = append(tableData, []string{
			record.ID,
			record.Target,
			string(record.Status),
			record.StartTime.Format("2006-01-02 15:04:05"),
			endTime,
		})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Target", "Status", "Started", "Ended"})
	table.SetBorder(true)
	table.AppendBulk(tableData)
	table.Render()
}

// PrintFindingTable prints a list of findings as a table
func PrintFindingTable(records []*Finding) {
	var tableData [][]string
	for _, record := range records {
		formattedData := string(record.Data)
		if len(formattedData) > PrintMaxDataLength {
			formattedData = formattedData[0:PrintMaxDataLength] + "..."
		}
		tableData = append(tableData, []string{
			strconv.FormatUint(uint64(record.ID), 10),
			record.Module,
			record.Source,
			record.Type,
			formattedData,
		})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Module", "Source", "Type", "Data"})
	table.SetBorder(true)
	table.AppendBulk(tableData)
	table.Render()
}

// PrintSummaryTable prints per type finding counts after a scan
func PrintSummaryTable(summary map[string]int) {
	var tableData [][]string
	for _, ftype := range sortedKeys(summary) {
		tableData = append(tableData, []string{ftype, strconv.Itoa(summary[ftype])})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Type", "Findings"})
	table.SetBorder(true)
	table.AppendBulk(tableData)
	table.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
