package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/agent"
	"github.com/agentforge/agentd/internal/extractor"
	"github.com/agentforge/agentd/internal/llm"
	"github.com/agentforge/agentd/internal/store"
	"github.com/agentforge/agentd/internal/vectorstore"
)

// AgentRequest is the request body for creating or updating an agent.
type AgentRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Model        string  `json:"llm_model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Personality  string  `json:"personality"`
	Guardrails   string  `json:"guardrails"`
	TemplateName string  `json:"template_name"`
}

// AgentResponse is an agent record plus its document and conversation
// counts.
type AgentResponse struct {
	store.Agent
	DocumentCount     int64 `json:"document_count"`
	ConversationCount int64 `json:"conversation_count"`
}

// ChatRequest is the request body for POST /api/agents/:id/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Source         string `json:"source"`
}

func (s *Server) handleCreateAgent(c echo.Context) error {
	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a := &store.Agent{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Personality:  req.Personality,
		Guardrails:   req.Guardrails,
		TemplateName: req.TemplateName,
	}
	if err := s.service.CreateAgent(c.Request().Context(), a); err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) handleListAgents(c echo.Context) error {
	agents, err := s.service.ListAgents(c.Request().Context())
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, agents)
}

func (s *Server) handleGetAgent(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := s.service.GetAgent(ctx, id)
	if err != nil {
		return s.mapError(c, err)
	}
	docs, convs, err := s.service.AgentCounts(ctx, id)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, AgentResponse{
		Agent:             *a,
		DocumentCount:     docs,
		ConversationCount: convs,
	})
}

func (s *Server) handleUpdateAgent(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := s.service.GetAgent(ctx, id)
	if err != nil {
		return s.mapError(c, err)
	}

	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	applyUpdate(a, req)

	if err := s.service.UpdateAgent(ctx, a); err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// applyUpdate copies set fields onto the agent, leaving zero-valued request
// fields untouched.
func applyUpdate(a *store.Agent, req AgentRequest) {
	if req.Name != "" {
		a.Name = req.Name
	}
	if req.Description != "" {
		a.Description = req.Description
	}
	if req.Model != "" {
		a.Model = req.Model
	}
	if req.SystemPrompt != "" {
		a.SystemPrompt = req.SystemPrompt
	}
	if req.Temperature != 0 {
		a.Temperature = req.Temperature
	}
	if req.MaxTokens != 0 {
		a.MaxTokens = req.MaxTokens
	}
	if req.Personality != "" {
		a.Personality = req.Personality
	}
	if req.Guardrails != "" {
		a.Guardrails = req.Guardrails
	}
}

func (s *Server) handleDeleteAgent(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	if err := s.service.DeleteAgent(c.Request().Context(), id); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleChat(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	if req.Source != "" && !validChannel(req.Source) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid source")
	}

	resp, err := s.service.Chat(c.Request().Context(), agent.ChatRequest{
		AgentID:        id,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Channel:        req.Source,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUploadDocument(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if !s.extensionAllowed(fileHeader.Filename) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q", extractor.FileExtension(fileHeader.Filename)))
	}
	if fileHeader.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read file")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read file")
	}
	if int64(len(content)) > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	}

	doc, created, err := s.service.AddDocument(c.Request().Context(), id, fileHeader.Filename, content)
	if err != nil {
		return s.mapError(c, err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, doc)
}

func (s *Server) handleListDocuments(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	docs, err := s.service.ListDocuments(c.Request().Context(), id)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleDeleteDocuments(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	if err := s.service.DeleteDocuments(c.Request().Context(), id); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListConversations(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return err
	}
	// Listings are scoped to the platform channel unless another source
	// is requested.
	channel := c.QueryParam("source")
	if channel == "" {
		channel = agent.ChannelPlatform
	}
	if !validChannel(channel) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid source")
	}
	convs, err := s.service.ListConversations(c.Request().Context(), id, channel)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, convs)
}

func (s *Server) handleConversationMessages(c echo.Context) error {
	msgs, err := s.service.ConversationMessages(c.Request().Context(), c.Param("conversation_id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func agentID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid agent id")
	}
	return uint(id), nil
}

// extensionAllowed applies the configured upload allow-list. An empty list
// defers to the extractor's supported types.
func (s *Server) extensionAllowed(filename string) bool {
	if len(s.config.AllowedExtensions) == 0 {
		return extractor.IsSupported(filename)
	}
	ext := extractor.FileExtension(filename)
	for _, allowed := range s.config.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func validChannel(channel string) bool {
	switch channel {
	case agent.ChannelPlatform, agent.ChannelPublicAPI, agent.ChannelWidget:
		return true
	}
	return false
}

// mapError translates pipeline errors to HTTP status codes.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrAgentNotFound),
		errors.Is(err, store.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, extractor.ErrUnsupportedType),
		errors.Is(err, extractor.ErrExtractionFailed),
		errors.Is(err, llm.ErrUnsupportedModel),
		errors.Is(err, llm.ErrMissingCredential):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, vectorstore.ErrIndexUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
