package reporting

import (
	"fmt"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"
	"k8s.io/klog"

	"github.com/mwhite/budgeteer/pkg/config"
)

func CreateInfluxClient(secrets *config.InfluxSecrets) (influx.Client, error) {
	return influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

func EnsureInfluxDatabase(influxClient influx.Client, name string) error {
	createCommand := fmt.Sprintf("CREATE DATABASE %s", name)

	q := influx.NewQuery(createCommand, "", "")
	if response, err := influxClient.Query(q); err == nil && response.Error() != nil {
		return response.Error()
	} else if err != nil {
		return err
	}

	return nil
}

// ExportTotals writes the per-tag monthly totals as points in the spending
// measurement, one point per (month, tag).
func ExportTotals(influxClient influx.Client, database string, totals []TagTotal) error {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  database,
		Precision: "h",
	})
	if err != nil {
		return fmt.Errorf("Error creating InfluxDB point batch: %s", err.Error())
	}

	for _, row := range totals {
		t, err := time.Parse("2006-01", row.Month)
		if err != nil {
			return fmt.Errorf("Error parsing month %s: %s", row.Month, err.Error())
		}

		amount, _ := row.Total.Float64()

		pt, err := influx.NewPoint(
			"spending",
			map[string]string{"tag": row.Tag},
			map[string]interface{}{"amount": amount},
			t,
		)
		if err != nil {
			return fmt.Errorf("Error creating InfluxDB point: %s", err.Error())
		}

		bp.AddPoint(pt)
	}

	if err := influxClient.Write(bp); err != nil {
		return fmt.Errorf("Error writing spending totals to influx: %s", err.Error())
	}

	klog.Infof("Wrote %v spending totals to influx database %s", len(totals), database)

	return nil
}
