package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/nickyhof/DuckServe/ps"
)

// Config holds the server settings resolved from flags, environment and .env files.
type Config struct {
	Address       string
	Database      string
	BundleDir     string
	BundleHistory bool
	SlowQuery     time.Duration
	QueryTimeout  time.Duration
	SendBuffer    int
	LogLevel      string
	Remote        ps.RemoteConfig
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Address", c.Address)
	addField("Send Buffer", fmt.Sprintf("%d frames", c.SendBuffer))

	addSection("Engine")
	database := c.Database
	if database == "" {
		database = ":memory:"
	}
	addField("Database", database)
	addField("Slow Query", c.SlowQuery.String())
	if c.QueryTimeout > 0 {
		addField("Query Timeout", c.QueryTimeout.String())
	} else {
		addField("Query Timeout", "none")
	}

	addSection("Bundles")
	addField("Directory", c.BundleDir)
	addField("History", fmt.Sprintf("%t", c.BundleHistory))
	if c.Remote.Enabled() {
		addField("Remote", c.Remote.URL)
		if c.Remote.Region != "" {
			addField("Region", c.Remote.Region)
		}
		if c.Remote.Endpoint != "" {
			addField("Endpoint", c.Remote.Endpoint)
		}
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
