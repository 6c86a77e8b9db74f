// Package config loads everything a decode scan is configured with.
//
// # Decode Options
//
// ParseOptions validates the free-form key/value option set attached to a
// table. Keys are case-insensitive; unknown keys and the Kafka connection
// keys consumed elsewhere (k_*, batch) are accepted with a warning.
//
//	opts, err := config.ParseOptions(map[string]string{
//		"format":        "csv",
//		"csv_null":      "NULL",
//		"csv_delimiter": "|",
//	})
//
// # Job Files
//
// A job file describes one scan: the source, the table schema, the decode
// options and the sink. LoadJob reads it with viper, so every key can be
// overridden from the environment:
//
//	KROW_SOURCE_KAFKA_TOPIC=orders-v2 krow consume --config job.yaml
//
// # Table Files
//
// LoadTable reads a standalone table schema. ${VAR_NAME} references are
// replaced with environment values before the YAML is parsed:
//
//	name: orders
//	columns:
//	  - name: id
//	    type: bigint
//	  - name: amount
//	    type: numeric
//	    precision: 12
//	    scale: 2
//	  - name: dsn
//	    type: text
//	    dropped: ${DROP_DSN}
package config
