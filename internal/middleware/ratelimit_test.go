package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"unisell/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

func TestSendRateLimiterPerCaller(t *testing.T) {
	utils.SetSecret([]byte("middleware-secret"))
	t.Cleanup(func() { utils.SetSecret(nil) })

	app := fiber.New()
	app.Post("/send", AuthMiddleware, SendRateLimiter(2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(token string) int {
		req := httptest.NewRequest("POST", "/send", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, int((5 * time.Second).Milliseconds()))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp.StatusCode
	}

	first := signed(t, testUser)
	second := signed(t, "64b7f0c2a1b2c3d4e5f60719")

	for i, want := range []int{fiber.StatusCreated, fiber.StatusCreated, fiber.StatusTooManyRequests} {
		if got := send(first); got != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, got)
		}
	}
	if got := send(second); got != fiber.StatusCreated {
		t.Errorf("other caller should have its own budget, got %d", got)
	}
}

func TestRateLimiterFallsBackToIP(t *testing.T) {
	app := fiber.New()
	app.Post("/send", SendRateLimiter(2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/send", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != fiber.StatusCreated || codes[1] != fiber.StatusCreated || codes[2] != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	app := fiber.New()
	app.Get("/", RateLimiter(0, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}
}
