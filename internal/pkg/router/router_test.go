package router

import (
	"encoding/base64"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventBooth/app/controllers"
	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
	"github.com/ManuelReschke/EventBooth/internal/pkg/billing"
	"github.com/ManuelReschke/EventBooth/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/EventBooth/internal/pkg/identity"
	"github.com/ManuelReschke/EventBooth/internal/pkg/security"
)

const openAPIFile = "../../../public/docs/v1/openapi.yml"

func newTestApp(t *testing.T, auth *security.OperatorConfig) *fiber.App {
	t.Helper()
	db := dbtest.Open(t)
	verifier, err := billing.NewVerifier("wc-secret")
	require.NoError(t, err)

	auditLog := audit.NewLog(db, nil)
	resolver := identity.NewResolver(db, nil, nil, time.Second)
	pipeline := billing.NewPipeline(verifier, auditLog, billing.NewPackageResolver(db), resolver, billing.NewProcessor(db, nil))

	app := fiber.New()
	InstallRouter(app, Dependencies{
		Health:       controllers.NewHealthController(db),
		Webhooks:     controllers.NewWebhookController(pipeline, nil, 5*time.Second),
		Operator:     controllers.NewOperatorController(auditLog, billing.NewReplayer(auditLog, pipeline), nil),
		OperatorAuth: auth,
	})
	t.Cleanup(auditLog.Wait)
	return app
}

func operatorAuth(t *testing.T, rateLimit int) *security.OperatorConfig {
	t.Helper()
	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)
	return &security.OperatorConfig{User: "ops", PasswordHash: hash, RateLimit: rateLimit}
}

var fiberParam = regexp.MustCompile(`:([A-Za-z_]+)`)

func TestRoutesAreDocumented(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIFile)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))

	app := newTestApp(t, operatorAuth(t, 60))
	checked := 0
	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead {
			continue
		}
		path := fiberParam.ReplaceAllString(r.Path, "{$1}")
		item := doc.Paths.Value(path)
		if !assert.NotNil(t, item, "route %s %s missing from openapi.yml", r.Method, r.Path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(r.Method), "operation %s %s missing from openapi.yml", r.Method, r.Path)
		checked++
	}
	assert.GreaterOrEqual(t, checked, 9)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, operatorAuth(t, 60))

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookRoute_RejectsUnsigned(t *testing.T) {
	app := newTestApp(t, operatorAuth(t, 60))

	resp, err := app.Test(httptest.NewRequest("POST", "/webhooks/woocommerce", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestOperatorRoutes_RequireAuthAndRateLimit(t *testing.T) {
	app := newTestApp(t, operatorAuth(t, 2))

	resp, err := app.Test(httptest.NewRequest("GET", "/operator/webhooks", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	authorized := func() int {
		req := httptest.NewRequest("GET", "/operator/webhooks", nil)
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("ops:s3cret")))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, authorized())
	assert.Equal(t, fiber.StatusOK, authorized())
	assert.Equal(t, fiber.StatusTooManyRequests, authorized())
}

func TestOperatorRoutes_DisabledWithoutCredentials(t *testing.T) {
	app := newTestApp(t, &security.OperatorConfig{})

	resp, err := app.Test(httptest.NewRequest("GET", "/operator/packages/report", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
