package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// HashSource supplies the expected SHA-256 of the template archive.
type HashSource interface {
	ExpectedSHA256(ctx context.Context) (string, error)
}

// StaticHash is a hash given on the command line.
type StaticHash string

func (h StaticHash) ExpectedSHA256(context.Context) (string, error) { return string(h), nil }

// ParameterGetter is the subset of *ssm.Client used by SSMHashSource.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMHashSource reads the expected hash from an SSM parameter.
type SSMHashSource struct {
	Client ParameterGetter
	Name   string
}

func (s SSMHashSource) ExpectedSHA256(ctx context.Context) (string, error) {
	out, err := s.Client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.Name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", s.Name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", s.Name)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", s.Name)
	}
	return v, nil
}

// ChecksumError means the template on disk does not match the expected
// hash. It is raised before any workspace is created.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("template %s checksum mismatch: expected %s, got %s", e.Path, e.Expected, e.Actual)
}
