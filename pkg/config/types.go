package config

type Config struct {
	Budget    BudgetConfig
	Reporting ReportingConfig
}

type Secrets struct {
	Influx InfluxSecrets
	SQL    SqlSecrets

	// Alternative to the Sql struct, a full DSN for the budget database.
	// Designed to be used with heroku style env variables.
	DatabaseURL string `env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Budget
///////////////////////////////////////////////////////////////////////////////////////

type BudgetConfig struct {
	UpdateFrequency string `json:"updateFrequency"`
	// Folder that bank CSV exports get dropped into
	CSVFolder string `json:"csvFolder"`
	// Bank profile definitions, see pkg/csvimporter
	BankProfilesFile string `json:"bankProfilesFile"`
	// Durable mirror of the vendors table, rewritten on every vendor change
	VendorsFile string `json:"vendorsFile"`
	// Budget plan definitions validated by pkg/budgetchecks
	BudgetPlansFile string `json:"budgetPlansFile"`
	SQL             struct {
		BudgetDatabase string
		// When set, use an embedded sqlite database file instead of postgres
		SQLiteFile string
	}
}

type SqlSecrets struct {
	SqlHost     string `env:"SQL_HOST"`
	SqlUsername string `env:"SQL_USERNAME"`
	SqlPassword string `env:"SQL_PASSWORD"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Reporting
///////////////////////////////////////////////////////////////////////////////////////

type ReportingConfig struct {
	InfluxDatabase string `json:"influxDatabase"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `env:"INFLUX_ENDPOINT"`
	InfluxUsername string `env:"INFLUX_USERNAME"`
	InfluxPassword string `env:"INFLUX_PASSWORD"`
}
