package enum

type EntityType string

const (
	INBOUND_EMAIL EntityType = "INBOUND_EMAIL"
	EMAIL_REPLY   EntityType = "EMAIL_REPLY"
	SYSTEM_EVENT  EntityType = "SYSTEM_EVENT"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
