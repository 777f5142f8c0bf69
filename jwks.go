package keygate

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/internal/cache"
)

const jwksCachePeriod = 5 * time.Minute

// handleJWKS serves the public keys for verifying login receipts
func (kg *KeyGate) handleJWKS(ctx *fiber.Ctx) error {
	var cached []byte
	set, err := cache.Get(cache.KeyJWKS, &cached)
	if err != nil {
		log.WithError(err).Warn("could not read cached jwks")
	}
	if !set {
		cached, err = kg.svc.Receipts().JWKSJSON()
		if err != nil {
			return err
		}
		if err = cache.Set(cache.KeyJWKS, cached, jwksCachePeriod); err != nil {
			log.WithError(err).Warn("could not cache jwks")
		}
	}
	ctx.Set(fiber.HeaderContentType, "application/jwk-set+json")
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return ctx.Send(cached)
}
