package service

import (
	"context"
	"errors"
	"time"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/metrics"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
	"github.com/remiblancher/pqhybrid/pkg/engine"
)

func signOpts(sigCtx []byte) *crypto.SignOpts {
	if sigCtx == nil {
		return nil
	}
	return &crypto.SignOpts{Context: sigCtx}
}

// Sign signs req.Message with the key stored under id.
func (s *KeyService) Sign(ctx context.Context, id string, req *dto.SignRequest) (*dto.SignResponse, error) {
	msg, err := decodeField("message", &req.Message)
	if err != nil {
		return nil, err
	}
	sigCtx, err := decodeField("context", req.Context)
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
	sig, err := k.Sign(s.rand, msg, signOpts(sigCtx))
	s.observe(metrics.OpSign, alg, err, start)
	if auditErr := audit.LogSign(id, alg, len(msg), err); auditErr != nil {
		return nil, auditErr
	}
	if err != nil {
		return nil, err
	}
	return &dto.SignResponse{Signature: dto.Base64(sig), Size: len(sig)}, nil
}

// Verify checks req.Signature with the key stored under id. A well-formed
// signature that does not verify is reported as Valid=false; a malformed
// one is returned as an error matching crypto.ErrFormat.
func (s *KeyService) Verify(ctx context.Context, id string, req *dto.VerifyRequest) (*dto.VerifyResponse, error) {
	msg, err := decodeField("message", &req.Message)
	if err != nil {
		return nil, err
	}
	sig, err := decodeField("signature", &req.Signature)
	if err != nil {
		return nil, err
	}
	sigCtx, err := decodeField("context", req.Context)
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
	err = k.Verify(msg, sig, signOpts(sigCtx))
	s.observe(metrics.OpVerify, alg, err, start)
	if auditErr := audit.LogVerify(id, alg, len(sig), err); auditErr != nil {
		return nil, auditErr
	}

	var ve *crypto.VerificationError
	switch {
	case err == nil:
		return &dto.VerifyResponse{Valid: true}, nil
	case errors.As(err, &ve):
		return &dto.VerifyResponse{Valid: false, Component: ve.Component}, nil
	default:
		return nil, err
	}
}

// Encapsulate runs a hybrid encapsulation against the key stored under id.
func (s *KeyService) Encapsulate(ctx context.Context, id string) (*dto.EncapsulateResponse, error) {
	k, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer k.Free()
	alg := k.Algorithm().Name

	start := time.Now()
	ct, ss, err := k.Encapsulate(s.rand)
	s.observe(metrics.OpEncapsulate, alg, err, start)
	if auditErr := audit.LogEncapsulate(id, alg, err); auditErr != nil {
		engine.Zeroize(ss)
		return nil, auditErr
	}
	if err != nil {
		return nil, err
	}
	resp := &dto.EncapsulateResponse{Ciphertext: dto.Base64(ct), SharedSecret: dto.Base64(ss)}
	engine.Zeroize(ss)
	return resp, nil
}

// Decapsulate recovers the shared secret of req.Ciphertext.
func (s *KeyService) Decapsulate(ctx context.Context, id string, req *dto.DecapsulateRequest) (*dto.DecapsulateResponse, error) {
	ct, err := decodeField("ciphertext", &req.Ciphertext)
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
	ss, err := k.Decapsulate(ct)
	s.observe(metrics.OpDecapsulate, alg, err, start)
	if auditErr := audit.LogDecapsulate(id, alg, len(ct), err); auditErr != nil {
		engine.Zeroize(ss)
		return nil, auditErr
	}
	if err != nil {
		return nil, err
	}
	resp := &dto.DecapsulateResponse{SharedSecret: dto.Base64(ss)}
	engine.Zeroize(ss)
	return resp, nil
}
