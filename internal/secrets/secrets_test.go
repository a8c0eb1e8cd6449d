package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	value string
	err   error
	asked []string
}

func (f *fakeGetter) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = append(f.asked, aws.ToString(in.SecretId))
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestAPIKeyPlain(t *testing.T) {
	g := &fakeGetter{value: " key-123\n"}
	key, err := (&Resolver{Client: g}).APIKey(context.Background(), "marketplace/gemini")
	require.NoError(t, err)
	assert.Equal(t, "key-123", key)
	assert.Equal(t, []string{"marketplace/gemini"}, g.asked)
}

func TestAPIKeyJSON(t *testing.T) {
	g := &fakeGetter{value: `{"api_key":"key-456","other":"x"}`}
	key, err := (&Resolver{Client: g}).APIKey(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "key-456", key)
}

func TestAPIKeyEmpty(t *testing.T) {
	for _, v := range []string{"", `{"other":"x"}`} {
		_, err := (&Resolver{Client: &fakeGetter{value: v}}).APIKey(context.Background(), "s")
		require.ErrorIs(t, err, ErrEmptySecret)
	}
}

func TestAPIKeyFetchError(t *testing.T) {
	g := &fakeGetter{err: errors.New("access denied")}
	_, err := (&Resolver{Client: g}).APIKey(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Len(t, g.asked, 1, "no retries")
}
