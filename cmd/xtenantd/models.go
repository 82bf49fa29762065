package main

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
	"github.com/omeyang/xtenancy/pkg/tenancy/xtenancy"
)

const (
	modelAnimal = "Animal"
	modelCat    = "Cat"
	modelDog    = "Dog"
	modelAudit  = "AuditEvent"
)

// animalKinds Animal 的判别器，与 POST /animals/{kind} 对应。
var animalKinds = []string{"MaineCoon", "Beagle"}

func models() []xschema.ModelDefinition {
	kinds := make([]xschema.Discriminator, 0, len(animalKinds))
	for _, k := range animalKinds {
		kinds = append(kinds, xschema.Discriminator{Name: k})
	}
	return []xschema.ModelDefinition{
		{
			Name:           modelAnimal,
			Schema:         xschema.Schema{DiscriminatorKey: "animalType"},
			Discriminators: kinds,
		},
		{
			Name: modelCat,
			Schema: xschema.Schema{Validator: bson.M{
				"$jsonSchema": bson.M{
					"bsonType": "object",
					"required": bson.A{"name"},
				},
			}},
		},
		{Name: modelDog},
		{Name: modelAudit, Collection: "audit_events"},
	}
}

// auditEvent 把 Kafka 消息写入所属租户的审计集合。
func auditEvent(ctx context.Context, msg *kafka.Message) error {
	m, err := xtenancy.ModelFrom(ctx, modelAudit)
	if err != nil {
		return err
	}
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	_, err = m.InsertOne(ctx, bson.M{
		"topic":     topic,
		"partition": msg.TopicPartition.Partition,
		"offset":    int64(msg.TopicPartition.Offset),
		"key":       string(msg.Key),
		"body":      string(msg.Value),
		"tenant":    xctx.TenantID(ctx),
		"timestamp": msg.Timestamp,
	})
	return err
}
