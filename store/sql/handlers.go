package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func orderHandlers() repository.ModelHandlers[*orderRecord] {
	return repository.ModelHandlers[*orderRecord]{
		NewRecord: func() *orderRecord {
			return &orderRecord{}
		},
		GetID: func(record *orderRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *orderRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *orderRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func shippingAddressHandlers() repository.ModelHandlers[*shippingAddressRecord] {
	return repository.ModelHandlers[*shippingAddressRecord]{
		NewRecord: func() *shippingAddressRecord {
			return &shippingAddressRecord{}
		},
		GetID: func(record *shippingAddressRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *shippingAddressRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *shippingAddressRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func billingAddressHandlers() repository.ModelHandlers[*billingAddressRecord] {
	return repository.ModelHandlers[*billingAddressRecord]{
		NewRecord: func() *billingAddressRecord {
			return &billingAddressRecord{}
		},
		GetID: func(record *billingAddressRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *billingAddressRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *billingAddressRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func webhookEventHandlers() repository.ModelHandlers[*webhookEventRecord] {
	return repository.ModelHandlers[*webhookEventRecord]{
		NewRecord: func() *webhookEventRecord {
			return &webhookEventRecord{}
		},
		GetID: func(record *webhookEventRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *webhookEventRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *webhookEventRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
