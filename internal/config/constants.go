package config

// Application info
const (
	AppName    = "Tender Dashboard"
	AppVersion = "1.0.0"
)

// Defaults shared by the binaries.
const (
	DefaultExportName = "tenders.xlsx"
	UserAgent         = "tenderdash/" + AppVersion
)
