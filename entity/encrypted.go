package entity

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/cafevdb/cafevdbmembers/internal/crypto"
	"gorm.io/gorm/schema"
)

// EncryptedSerializerName is the gorm serializer tag value of sealed columns.
const EncryptedSerializerName = "encrypted"

var (
	sealerMu     sync.RWMutex
	activeSealer *crypto.Sealer
)

func init() {
	schema.RegisterSerializer(EncryptedSerializerName, EncryptedSerializer{})
}

// EncryptedSerializer seals string columns with the application encryption
// key on write and unseals them on read.
type EncryptedSerializer struct{}

// RegisterEncryption installs the sealer used by all columns tagged
// `serializer:encrypted`.
func RegisterEncryption(sealer *crypto.Sealer) {
	sealerMu.Lock()
	activeSealer = sealer
	sealerMu.Unlock()
}

func currentSealer() (*crypto.Sealer, error) {
	sealerMu.RLock()
	defer sealerMu.RUnlock()
	if activeSealer == nil {
		return nil, fmt.Errorf("no encryption key registered")
	}
	return activeSealer, nil
}

// Scan implements serializer interface
func (EncryptedSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	var sealed string
	switch v := dbValue.(type) {
	case nil:
	case []byte:
		sealed = string(v)
	case string:
		sealed = v
	default:
		return fmt.Errorf("failed to unseal %s: unsupported value %T", field.Name, dbValue)
	}

	var plain string
	if sealed != "" {
		sealer, err := currentSealer()
		if err != nil {
			return err
		}
		if plain, err = sealer.Open(sealed); err != nil {
			return fmt.Errorf("failed to unseal %s: %w", field.Name, err)
		}
	}

	fieldValue := reflect.New(field.FieldType).Elem()
	if fieldValue.Kind() != reflect.String {
		return fmt.Errorf("encrypted column %s must be a string, got %s", field.Name, field.FieldType)
	}
	fieldValue.SetString(plain)
	field.ReflectValueOf(ctx, dst).Set(fieldValue)
	return nil
}

// Value implements serializer interface
func (EncryptedSerializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue interface{}) (interface{}, error) {
	v := reflect.ValueOf(fieldValue)
	if v.Kind() != reflect.String {
		return nil, fmt.Errorf("encrypted column %s must be a string, got %T", field.Name, fieldValue)
	}
	if v.String() == "" {
		return nil, nil
	}

	sealer, err := currentSealer()
	if err != nil {
		return nil, err
	}
	return sealer.Seal(v.String())
}
