package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func confidence(value float64) *float64 {
	return &value
}

func TestElementPayloadRoundTripKeepsVariant(t *testing.T) {
	payloads := []ElementPayload{
		{ID: "e1", Name: "Book", Type: "entity", SubType: EntityStrong, Confidence: confidence(97.6)},
		{ID: "r1", Name: "Borrows", Type: "Relationship", SubType: RelationshipOneToMany, From: "Member", To: "Book", Confidence: confidence(80)},
		{ID: "a1", Name: "isbn", Type: "attribute", SubType: AttributePrimaryKey, BelongsTo: "Book", BelongsToType: "ENTITY"},
	}

	set, err := NewElementSet(payloads)
	require.NoError(t, err)
	require.Len(t, set, 3)

	require.IsType(t, Entity{}, set[0])
	require.Equal(t, 98, set[0].ElementConfidence())

	relationship, ok := set[1].(Relationship)
	require.True(t, ok)
	require.Equal(t, "Member", relationship.From)

	attribute, ok := set[2].(Attribute)
	require.True(t, ok)
	require.Equal(t, ElementTypeEntity, attribute.BelongsToType)
	require.Equal(t, ManualConfidence, attribute.Confidence)

	raw, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded ElementSet
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, set, decoded)
}

func TestElementPayloadRejectsUnknownType(t *testing.T) {
	_, err := NewElementSet([]ElementPayload{{Name: "Thing", Type: "table"}})
	require.ErrorIs(t, err, ErrUnknownElementType)
}

func TestElementPayloadGeneratesMissingID(t *testing.T) {
	element, err := ElementPayload{Name: "Member", Type: "entity", SubType: EntityStrong}.ToElement()
	require.NoError(t, err)
	require.NotEmpty(t, element.ElementID())
}

func TestElementSetPartitionUsesThreshold(t *testing.T) {
	set := ElementSet{
		Entity{ElementBase: ElementBase{Name: "A", SubType: EntityStrong, Confidence: 95}},
		Entity{ElementBase: ElementBase{Name: "B", SubType: EntityStrong, Confidence: 94}},
		Entity{ElementBase: ElementBase{Name: "C", SubType: EntityWeak, Confidence: 40}},
	}

	accepted, review := set.Partition()
	require.Len(t, accepted, 1)
	require.Len(t, review, 2)
	require.Equal(t, "A", accepted[0].ElementName())
	require.Equal(t, 3, set.Count(ElementTypeEntity))
	require.Zero(t, set.Count(ElementTypeAttribute))
}

func TestElementSetValidateReferences(t *testing.T) {
	set := ElementSet{
		Entity{ElementBase: ElementBase{Name: "Book", SubType: EntityStrong, Confidence: 100}},
		Relationship{ElementBase: ElementBase{Name: "Borrows", SubType: RelationshipManyToMany, Confidence: 100}, From: "Member", To: "book"},
		Attribute{ElementBase: ElementBase{Name: "isbn", SubType: AttributePrimaryKey, Confidence: 100}, BelongsTo: "Book", BelongsToType: ElementTypeEntity},
		Attribute{ElementBase: ElementBase{Name: "address", SubType: AttributeComposite, Confidence: 100}, BelongsTo: "address", BelongsToType: ElementTypeAttribute},
		Entity{ElementBase: ElementBase{Name: "", SubType: "huge", Confidence: 120}},
	}

	fields := set.Validate()
	require.Equal(t, `entity "Member" does not exist`, fields["elements[1].from"])
	require.NotContains(t, fields, "elements[1].to")
	require.NotContains(t, fields, "elements[2].belongsTo")
	require.Equal(t, "attribute cannot belong to itself", fields["elements[3].belongsTo"])
	require.Equal(t, "name is required", fields["elements[4].name"])
	require.Contains(t, fields["elements[4].subType"], "strong, weak")
	require.Contains(t, fields, "elements[4].confidence")
}

func TestElementSetScanAndValue(t *testing.T) {
	var empty ElementSet
	value, err := empty.Value()
	require.NoError(t, err)
	require.Equal(t, "[]", value)

	var scanned ElementSet
	require.NoError(t, scanned.Scan([]byte(`[{"id":"e1","name":"Book","type":"entity","subType":"strong","confidence":99}]`)))
	require.Len(t, scanned, 1)
	require.Equal(t, "Book", scanned[0].ElementName())

	require.NoError(t, scanned.Scan(nil))
	require.Nil(t, scanned)

	require.Error(t, scanned.Scan(42))
}
