// Package influxdb records command activity as time-series points for
// usage analysis (which devices get used, when, by which action). The
// writer is asynchronous and best-effort; the hub never waits on it.
package influxdb

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/hallfield/homehub-core/internal/infrastructure/config"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

// Client writes device activity points to InfluxDB.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logging.Logger
}

// New creates an InfluxDB client with asynchronous batched writes.
func New(cfg config.InfluxDBConfig, logger *logging.Logger) *Client {
	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).                                        //nolint:gosec // G115: validated config
		SetFlushInterval(uint(time.Duration(cfg.FlushInterval) * time.Second / time.Millisecond)) //nolint:gosec // G115: validated config

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{client: client, writeAPI: writeAPI, logger: logger}
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("influxdb write failed", "error", err)
		}
	}()
	return c
}

// RecordDeviceAction writes one activity point. Fire-and-forget.
func (c *Client) RecordDeviceAction(houseID, roomID, deviceID int64, kind, action string) {
	point := influxdb2.NewPoint(
		"device_action",
		map[string]string{
			"house_id":    strconv.FormatInt(houseID, 10),
			"room_id":     strconv.FormatInt(roomID, 10),
			"device_id":   strconv.FormatInt(deviceID, 10),
			"device_type": kind,
			"action":      action,
		},
		map[string]any{"count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// Close flushes pending points and shuts the client down.
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}
