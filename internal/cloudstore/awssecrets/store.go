// Package awssecrets adapts AWS Secrets Manager to the
// secretstore.CloudStore capability.
package awssecrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/aegis-run/aegis/pkg/secretstore"
)

// Store is a secretstore.CloudStore backed by one AWS Secrets Manager
// secret. When SecretName is set, every key is resolved as a field within
// that one secret's JSON body; otherwise a key "name.field" reads field from
// the JSON body of secret "name", and a key with no dot is a whole secret.
type Store struct {
	name       string
	priority   int
	region     string
	secretName string

	client    *secretsmanager.Client
	available bool
}

// Options configures one AWS secret store instance.
type Options struct {
	Name       string
	Priority   int
	Region     string
	SecretName string // optional: JSON-body field addressing

	// AssumeRoleARN, if set, has the store call GetSecretValue/CreateSecret/
	// etc. under temporary credentials obtained by assuming this role
	// rather than the ambient credentials chain - for a store in an account
	// other than the one the host process normally runs in.
	AssumeRoleARN   string
	RoleSessionName string // defaults to "aegis-<store name>" when empty
}

// New constructs and probes an AWS Secrets Manager store. Probing (a
// ListSecrets call) happens eagerly so Available() never blocks later
// lookups on a credentials problem discovered mid-session.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Name == "" {
		return nil, secretstore.ConfigError{Store: opts.Name, Message: "store name is required"}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, secretstore.ConfigError{Store: opts.Name, Message: "loading AWS config: " + err.Error()}
	}

	if opts.AssumeRoleARN != "" {
		sessionName := opts.RoleSessionName
		if sessionName == "" {
			sessionName = "aegis-" + opts.Name
		}
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, opts.AssumeRoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionName
		}))
	}

	s := &Store{
		name:       opts.Name,
		priority:   opts.Priority,
		region:     opts.Region,
		secretName: opts.SecretName,
		client:     secretsmanager.NewFromConfig(cfg),
	}

	_, err = s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)})
	s.available = err == nil
	return s, nil
}

func (s *Store) Name() string     { return s.name }
func (s *Store) Priority() int    { return s.priority }
func (s *Store) ReadOnly() bool   { return false }

func (s *Store) Available(ctx context.Context) bool { return s.available }

// resolveSecretIDAndField implements the "secret_name configured means
// JSON-field addressing, otherwise key is the secret id" split, and the
// two-part dotted-key extraction (key.field) when no secretName override
// is set.
func resolveSecretIDAndField(key, secretName string) (secretID, field string) {
	if secretName != "" {
		return secretName, key
	}
	if parts := strings.SplitN(key, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, ""
}

// Get resolves key to an AWS secret id (and optional JSON field) via
// resolveSecretIDAndField, then fetches and, if a field was requested,
// extracts it from the secret's JSON body.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	secretID, field := resolveSecretIDAndField(key, s.secretName)

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if asResourceNotFound(err, &nf) {
			return "", false, nil
		}
		return "", false, secretstore.AuthError{Store: s.name, Message: err.Error()}
	}

	body := aws.ToString(out.SecretString)
	if field == "" {
		return body, true, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", false, fmt.Errorf("secret %q is not a JSON object, cannot extract field %q", secretID, field)
	}
	v, ok := parsed[field]
	if !ok {
		return "", false, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:                       aws.String(key),
		SecretString:               aws.String(value),
		ForceOverwriteReplicaSecret: aws.Bool(true),
	})
	if err != nil {
		var exists *smtypes.ResourceExistsException
		if asResourceExists(err, &exists) {
			_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     aws.String(key),
				SecretString: aws.String(value),
			})
		}
		if err != nil {
			return secretstore.AuthError{Store: s.name, Message: err.Error()}
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(key),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if asResourceNotFound(err, &nf) {
			return nil
		}
		return secretstore.AuthError{Store: s.name, Message: err.Error()}
	}
	return nil
}
