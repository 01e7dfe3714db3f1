// Package export serializes campaign history and particle snapshots as
// Arrow IPC files so they can be analysed outside the controller.
package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/mmtn/deposition-molecular-dynamics/internal/ledger"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// iterationsSchema mirrors the ledger row. The ledger stays the source of
// truth; export serializes it without re-deriving columns.
var iterationsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "iteration", Type: arrow.PrimitiveTypes.Int64},
	{Name: "run_id", Type: arrow.BinaryTypes.String},
	{Name: "outcome", Type: arrow.BinaryTypes.String},
	{Name: "reason", Type: arrow.BinaryTypes.String},
	{Name: "particles", Type: arrow.PrimitiveTypes.Int64},
	{Name: "state_path", Type: arrow.BinaryTypes.String},
	{Name: "archive_path", Type: arrow.BinaryTypes.String},
	{Name: "started_at", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "finished_at", Type: arrow.FixedWidthTypes.Timestamp_us},
}, nil)

// WriteIterations writes iteration records to w as an Arrow IPC file, one
// row per record in the order given.
func WriteIterations(w io.Writer, rows []ledger.Record) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, iterationsSchema)
	defer b.Release()

	for _, row := range rows {
		b.Field(0).(*array.Int64Builder).Append(int64(row.Iteration))
		b.Field(1).(*array.StringBuilder).Append(row.RunID)
		b.Field(2).(*array.StringBuilder).Append(row.Outcome)
		b.Field(3).(*array.StringBuilder).Append(row.Reason)
		b.Field(4).(*array.Int64Builder).Append(int64(row.Particles))
		b.Field(5).(*array.StringBuilder).Append(row.StatePath)
		b.Field(6).(*array.StringBuilder).Append(row.ArchivePath)
		b.Field(7).(*array.TimestampBuilder).Append(arrow.Timestamp(row.StartedAt.UnixMicro()))
		b.Field(8).(*array.TimestampBuilder).Append(arrow.Timestamp(row.FinishedAt.UnixMicro()))
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeRecord(w, iterationsSchema, rec)
}

// WriteState writes a particle state to w as an Arrow IPC file, one row
// per particle. Velocity columns are present only when the state carries
// velocities.
func WriteState(w io.Writer, state *structure.State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	fields := []arrow.Field{
		{Name: "index", Type: arrow.PrimitiveTypes.Int64},
		{Name: "element", Type: arrow.BinaryTypes.String},
		{Name: "x", Type: arrow.PrimitiveTypes.Float64},
		{Name: "y", Type: arrow.PrimitiveTypes.Float64},
		{Name: "z", Type: arrow.PrimitiveTypes.Float64},
	}
	if state.HasVelocities() {
		fields = append(fields,
			arrow.Field{Name: "vx", Type: arrow.PrimitiveTypes.Float64},
			arrow.Field{Name: "vy", Type: arrow.PrimitiveTypes.Float64},
			arrow.Field{Name: "vz", Type: arrow.PrimitiveTypes.Float64},
		)
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i := 0; i < state.Len(); i++ {
		b.Field(0).(*array.Int64Builder).Append(int64(i))
		b.Field(1).(*array.StringBuilder).Append(state.Elements[i])
		b.Field(2).(*array.Float64Builder).Append(state.Coordinates[i].X)
		b.Field(3).(*array.Float64Builder).Append(state.Coordinates[i].Y)
		b.Field(4).(*array.Float64Builder).Append(state.Coordinates[i].Z)
		if state.HasVelocities() {
			b.Field(5).(*array.Float64Builder).Append(state.Velocities[i].X)
			b.Field(6).(*array.Float64Builder).Append(state.Velocities[i].Y)
			b.Field(7).(*array.Float64Builder).Append(state.Velocities[i].Z)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeRecord(w, schema, rec)
}

func writeRecord(w io.Writer, schema *arrow.Schema, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema))
	if err != nil {
		return fmt.Errorf("opening arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	return fw.Close()
}
