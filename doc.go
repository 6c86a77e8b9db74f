// Package krow decodes Kafka message payloads into typed rows.
//
// A table declares an ordered list of columns and a set of decode options.
// From those, krow prepares a decode plan once and then turns every payload
// into zero or more rows whose values are produced by each column's value
// parser. Three payload formats are supported:
//
//   - avro: Avro object container files, with the writer schema embedded
//     in every payload or supplied once as an explicit reader schema
//   - csv: delimited text with configurable quote, delimiter, null marker,
//     header skipping and whitespace trimming
//   - text: the whole payload is the single column's value
//
// # Packages
//
//   - pkg/decode: plan preparation, the three decoders and row assembly
//   - pkg/format: format names and resolution
//   - pkg/schema: column and type-modifier definitions
//   - pkg/valueparser: default text-to-native value parsers
//   - pkg/config: decode options, job and table files
//   - pkg/source: Kafka partition and file payload sources
//   - internal/sink: JSON lines and PostgreSQL COPY sinks
//   - internal/pipeline: the source to decode to sink scan loop
//
// # Quick Start
//
//	cols, _ := table.Schema()
//	plan, err := decode.PrepareOptions(cols, map[string]string{"format": "csv"}, decode.Config{})
//	if err != nil {
//		return err
//	}
//	defer plan.Release()
//
//	rows, err := plan.Decode([]byte("1,alice\n2,bob\n"))
//
// The krow command wraps the same flow:
//
//	krow decode --table orders.yaml -o format=csv orders.csv
//	krow consume --config job.yaml --metrics-addr :9090
package krow
