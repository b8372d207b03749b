package service

import (
	"context"
	"errors"
	"time"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/metrics"
	"github.com/remiblancher/pqhybrid/pkg/cose"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// COSESign creates a COSE_Sign1 message with the key stored under id. The
// key id header carries the keystore id.
func (s *KeyService) COSESign(ctx context.Context, id string, req *dto.COSESignRequest) (*dto.COSESignResponse, error) {
	payload, err := decodeField("payload", &req.Payload)
	if err != nil {
		return nil, err
	}
	external, err := decodeField("external", req.External)
	if err != nil {
		return nil, err
	}

	k, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer k.Free()
	alg := k.Algorithm().Name

	start := time.Now()
	msg, err := cose.Sign1(s.rand, payload, k, &cose.MessageConfig{
		KeyID:       []byte(id),
		ContentType: req.ContentType,
		External:    external,
	})
	s.observe(metrics.OpSign, alg, err, start)
	if auditErr := audit.LogSign(id, alg, len(payload), err); auditErr != nil {
		return nil, auditErr
	}
	if err != nil {
		return nil, err
	}

	coseAlg, _ := cose.AlgorithmFor(k.Algorithm())
	return &dto.COSESignResponse{
		Message:     dto.Base64(msg),
		Algorithm:   alg,
		AlgorithmID: int64(coseAlg),
	}, nil
}

// COSEVerify checks a COSE_Sign1 message with the key stored under id.
func (s *KeyService) COSEVerify(ctx context.Context, id string, req *dto.COSEVerifyRequest) (*dto.COSEVerifyResponse, error) {
	data, err := decodeField("message", &req.Message)
	if err != nil {
		return nil, err
	}
	external, err := decodeField("external", req.External)
	if err != nil {
		return nil, err
	}

	k, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer k.Free()
	alg := k.Algorithm().Name

	start := time.Now()
	msg, err := cose.Verify1(data, k, external)
	s.observe(metrics.OpVerify, alg, err, start)
	if auditErr := audit.LogVerify(id, alg, len(data), err); auditErr != nil {
		return nil, auditErr
	}

	var ve *crypto.VerificationError
	switch {
	case err == nil:
		payload := dto.Base64(msg.Payload)
		return &dto.COSEVerifyResponse{
			Valid:       true,
			Algorithm:   msg.AlgorithmName(),
			ContentType: msg.ContentType,
			Payload:     &payload,
		}, nil
	case errors.As(err, &ve):
		return &dto.COSEVerifyResponse{Valid: false, Component: ve.Component, Algorithm: alg}, nil
	default:
		return nil, err
	}
}
