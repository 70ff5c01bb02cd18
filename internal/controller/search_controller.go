package controller

import (
	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/internal/pkg/serverutils"
	"ai-docsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Search(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type searchController struct {
	searchService service.ISearchService
}

func NewSearchController(searchService service.ISearchService) ISearchController {
	return &searchController{
		searchService: searchService,
	}
}

func (c *searchController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Get("/search/v1", auth, c.Search)
	r.Get("/index/v1/stats", auth, c.Stats)
}

func (c *searchController) Search(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SearchRequest
	if err := ctx.QueryParser(&req); err != nil {
		return serverutils.NewHTTPError(fiber.StatusBadRequest, "Invalid query", err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.searchService.Search(ctx.UserContext(), userId, &req)
	if err != nil {
		return toHTTPError(err)
	}

	message := "Success search"
	if res.Degraded {
		message = "Search index unavailable"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *searchController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get index stats", c.searchService.Stats(ctx.UserContext())))
}
