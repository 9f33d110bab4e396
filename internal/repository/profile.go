package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

// GetProfile returns the profile of userID. A user without a stored profile
// gets an empty one.
func (c *Client) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       key(profilePK(userID), skProfile),
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repository: GetProfile: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Profile{UserID: userID}, nil
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("repository: GetProfile unmarshal: %w", err)
	}
	p.UserID = userID
	return p, nil
}

// UpdateProfile merges the fields present in patch into userID's profile and
// returns the result. Absent fields keep their stored value.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.Empty() {
		return domain.Profile{}, fmt.Errorf("repository: UpdateProfile: empty patch")
	}
	sets := []string{"userId = :uid"}
	values := map[string]types.AttributeValue{":uid": strAV(userID)}
	names := map[string]string{}
	add := func(attr string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
		names["#"+attr] = attr
		values[":"+attr] = strAV(*v)
	}
	add("name", patch.Name)
	add("phone", patch.Phone)
	add("address", patch.Address)

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       key(profilePK(userID), skProfile),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repository: UpdateProfile: %w", err)
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("repository: UpdateProfile unmarshal: %w", err)
	}
	return p, nil
}
