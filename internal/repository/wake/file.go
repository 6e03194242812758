package wake

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-scheduler/internal/config"
)

// FileRepository persists records as a JSON document on disk.
// The document is a google.protobuf.Struct written with protojson so it shares
// its encoding with the bridge arguments and the alarm payloads.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serialises read-modify-write cycles.
	mu sync.Mutex
}

const (
	fieldWakes     = "wakes"
	fieldID        = "id"
	fieldTriggerAt = "trigger_at"
	fieldPayload   = "payload"
)

var errMalformedRecord = errors.New("malformed wake record")

// NewFileRepository creates a repository that reads and writes JSON at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Save inserts or replaces the record.
func (r *FileRepository) Save(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		return err
	}

	records[record.ID] = record

	return r.write(records)
}

// Delete removes the record if present.
func (r *FileRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		return err
	}

	if _, ok := records[id]; !ok {
		return nil
	}

	delete(records, id)

	return r.write(records)
}

// List returns all records ordered by trigger instant.
func (r *FileRepository) List(context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		return nil, err
	}

	result := make([]Record, 0, len(records))
	for _, record := range records {
		result = append(result, record)
	}

	sortRecords(result)

	return result, nil
}

// Close is a no-op.
func (r *FileRepository) Close() error {
	return nil
}

// read loads the file; a missing file is an empty set.
func (r *FileRepository) read() (map[int]Record, error) {
	records := make(map[int]Record)

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}

		return nil, fmt.Errorf("read wake file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode wake file: %w", err)
	}

	for _, value := range document.GetFields()[fieldWakes].GetListValue().GetValues() {
		record, err := fromStruct(value.GetStructValue())
		if err != nil {
			return nil, err
		}

		records[record.ID] = record
	}

	return records, nil
}

// write replaces the file atomically through a temporary sibling.
func (r *FileRepository) write(records map[int]Record) error {
	ordered := make([]Record, 0, len(records))
	for _, record := range records {
		ordered = append(ordered, record)
	}

	sortRecords(ordered)

	values := make([]*structpb.Value, 0, len(ordered))
	for _, record := range ordered {
		values = append(values, structpb.NewStructValue(toStruct(record)))
	}

	document := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldWakes: structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode wake file: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write wake file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace wake file: %w", err)
	}

	return nil
}

// toStruct converts a record into its JSON object form.
func toStruct(record Record) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldID:        structpb.NewNumberValue(float64(record.ID)),
			fieldTriggerAt: structpb.NewStringValue(record.TriggerAt.UTC().Format(time.RFC3339Nano)),
			fieldPayload:   structpb.NewStringValue(base64.StdEncoding.EncodeToString(record.Payload)),
		},
	}
}

// fromStruct parses a record from its JSON object form.
func fromStruct(object *structpb.Struct) (Record, error) {
	fields := object.GetFields()

	idValue, ok := fields[fieldID]
	if !ok {
		return Record{}, fmt.Errorf("%w: missing id", errMalformedRecord)
	}

	triggerAt, err := time.Parse(time.RFC3339Nano, fields[fieldTriggerAt].GetStringValue())
	if err != nil {
		return Record{}, fmt.Errorf("%w: trigger_at: %w", errMalformedRecord, err)
	}

	payload, err := base64.StdEncoding.DecodeString(fields[fieldPayload].GetStringValue())
	if err != nil {
		return Record{}, fmt.Errorf("%w: payload: %w", errMalformedRecord, err)
	}

	return Record{
		ID:        int(idValue.GetNumberValue()),
		TriggerAt: triggerAt,
		Payload:   payload,
	}, nil
}
