package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/unzip-hub/internal/repokind"
	"github.com/any-hub/unzip-hub/internal/server"
)

// RegisterRepoRoutes 暴露 /-/repos 与 /-/locks 诊断接口。
func RegisterRepoRoutes(app *fiber.App, registry *server.RepoRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/repos", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"repos": encodeRepos(registry.List()),
			"kinds": encodeKinds(repokind.List()),
		})
	})

	app.Get("/-/repos/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		for _, route := range registry.List() {
			if route.Config.Name == name {
				return c.JSON(encodeRepo(route))
			}
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repo_not_found"})
	})

	app.Get("/-/locks", func(c fiber.Ctx) error {
		live := 0
		if locks := registry.Locks(); locks != nil {
			live = locks.Len()
		}
		return c.JSON(fiber.Map{"live_monitors": live})
	})
}

type repoPayload struct {
	Name            string `json:"name"`
	Domain          string `json:"domain"`
	Kind            string `json:"kind"`
	Upstream        string `json:"upstream"`
	Port            int    `json:"port"`
	VirtualVersions bool   `json:"virtual_versions"`
}

type kindPayload struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

func encodeRepos(routes []server.RepoRoute) []repoPayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]repoPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, encodeRepo(route))
	}
	return result
}

func encodeRepo(route server.RepoRoute) repoPayload {
	return repoPayload{
		Name:            route.Config.Name,
		Domain:          route.Config.Domain,
		Kind:            route.Config.Type,
		Upstream:        route.Config.Upstream,
		Port:            route.ListenPort,
		VirtualVersions: route.Config.UseVirtualVersion,
	}
}

func encodeKinds(kinds []repokind.Kind) []kindPayload {
	result := make([]kindPayload, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, kindPayload{Key: kind.Key, Description: kind.Description})
	}
	return result
}
