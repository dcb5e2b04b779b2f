// Package exporter writes dashboard snapshots as xlsx workbooks.
//
// The workbook has a Summary sheet of headline figures, each with a raw value
// column for further calculation and a display column formatted the way the
// dashboard shows it, followed by one sheet per ranking or rollup:
//
//	Summary, Cities, Monthly, Prices, Anomalies, MoneyLeft, Neighborhoods, Developers
//
// Rows keep the order of the snapshot, so the workbook reads the same as the
// dashboard.
package exporter
