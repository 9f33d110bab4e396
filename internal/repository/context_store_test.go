package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
)

func storedContext(t *testing.T, owner string, version int64, n int) map[string]types.AttributeValue {
	t.Helper()
	cc := domain.ConversationContext{PK: contextPK(owner), SK: skContext, Owner: owner, Version: version}
	for i := 0; i < n; i++ {
		cc.Messages = append(cc.Messages, domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	return mustMarshal(t, cc)
}

func decodePut(t *testing.T, in *dynamodb.PutItemInput) domain.ConversationContext {
	t.Helper()
	var cc domain.ConversationContext
	require.NoError(t, attributevalue.UnmarshalMap(in.Item, &cc))
	return cc
}

func TestGetContext_Missing(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	cc, err := c.GetContext(context.Background(), "USER#u1")
	require.NoError(t, err)
	require.Nil(t, cc)
}

func TestGetContext_Error(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErrs: []error{errors.New("boom")}})
	_, err := c.GetContext(context.Background(), "USER#u1")
	require.ErrorContains(t, err, "boom")
}

func TestAppendContext_CreatesWithGuard(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	cart := []domain.CartItemView{{ProductID: "p1", Quantity: 2}}
	saved, err := c.AppendContext(context.Background(), "SESSION#s1", 10, AppendInput{
		Messages:   []domain.Message{{Role: domain.RoleUser, Content: "hi"}, {Role: domain.RoleAssistant, Content: "hello"}},
		LastIntent: domain.IntentOther,
		Cart:       cart,
	})
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)
	require.Equal(t, int64(1), saved.Version)

	require.Len(t, db.putIns, 1)
	require.Equal(t, "attribute_not_exists(PK)", aws.ToString(db.putIns[0].ConditionExpression))
	put := decodePut(t, db.putIns[0])
	require.Equal(t, "CTX#SESSION#s1", put.PK)
	require.Equal(t, domain.IntentOther, put.LastIntent)
	require.Equal(t, cart, put.Cart)
	require.Equal(t, ttlValue(testNow), put.TTL)
}

func TestAppendContext_EvictsOldestFirst(t *testing.T) {
	db := &fakeDynamo{getOuts: []*dynamodb.GetItemOutput{{Item: storedContext(t, "USER#u1", 4, 10)}}}
	c := mustNewClient(t, db)

	_, err := c.AppendContext(context.Background(), "USER#u1", 10, AppendInput{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "new"}},
	})
	require.NoError(t, err)

	put := decodePut(t, db.putIns[0])
	require.Len(t, put.Messages, 10)
	require.Equal(t, "m1", put.Messages[0].Content)
	require.Equal(t, "new", put.Messages[9].Content)
	require.Equal(t, "version = :v", aws.ToString(db.putIns[0].ConditionExpression))
	require.Equal(t, &types.AttributeValueMemberN{Value: "4"}, db.putIns[0].ExpressionAttributeValues[":v"])
	require.Equal(t, int64(5), put.Version)
}

func TestAppendContext_KeepsCartWhenNotSupplied(t *testing.T) {
	stored := domain.ConversationContext{
		PK: contextPK("USER#u1"), SK: skContext, Owner: "USER#u1", Version: 1,
		Cart: []domain.CartItemView{{ProductID: "p9"}},
	}
	db := &fakeDynamo{getOuts: []*dynamodb.GetItemOutput{{Item: mustMarshal(t, stored)}}}
	c := mustNewClient(t, db)

	_, err := c.AppendContext(context.Background(), "USER#u1", 10, AppendInput{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	put := decodePut(t, db.putIns[0])
	require.Equal(t, "p9", put.Cart[0].ProductID)
}

func TestAppendContext_RetriesLostRace(t *testing.T) {
	db := &fakeDynamo{
		getOuts: []*dynamodb.GetItemOutput{
			{Item: storedContext(t, "USER#u1", 1, 1)},
			{Item: storedContext(t, "USER#u1", 2, 2)},
		},
		putErrs: []error{conditionFailed(), nil},
	}
	c := mustNewClient(t, db)

	saved, err := c.AppendContext(context.Background(), "USER#u1", 10, AppendInput{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	require.Len(t, db.putIns, 2)
	require.Len(t, saved.Messages, 3)
	require.Equal(t, int64(3), saved.Version)
}

func TestAppendContext_GivesUpAfterRetries(t *testing.T) {
	db := &fakeDynamo{
		getOuts: []*dynamodb.GetItemOutput{{Item: storedContext(t, "USER#u1", 1, 1)}},
		putErrs: []error{conditionFailed()},
	}
	c := mustNewClient(t, db)

	_, err := c.AppendContext(context.Background(), "USER#u1", 10, AppendInput{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	require.Len(t, db.putIns, 4)
}

func TestAppendContext_NonConflictErrorNotRetried(t *testing.T) {
	db := &fakeDynamo{putErrs: []error{errors.New("throttled")}}
	c := mustNewClient(t, db)

	_, err := c.AppendContext(context.Background(), "USER#u1", 10, AppendInput{})
	require.ErrorContains(t, err, "throttled")
	require.Len(t, db.putIns, 1)
}

func TestAppendContext_RequiresOwner(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.AppendContext(context.Background(), "", 10, AppendInput{})
	require.Error(t, err)
}
