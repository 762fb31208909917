package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Action is a capability checked against a contact owner.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Error kinds surfaced by the permission mutators. Queries never fail: an
// unrecognized role/action combination resolves to false instead.
var (
	ErrUnauthorized      = errors.New("only admins can manage permissions")
	ErrUnknownUser       = errors.New("referenced user does not exist or is not an active comercial")
	ErrSelfGrant         = errors.New("a user cannot be granted visibility over their own contacts")
	ErrInvalidAssignment = errors.New("a comercial cannot be assigned as their own manager")

	// ErrPersistence signals that a mutation took effect in memory but could
	// not be written to durable storage. Callers should surface it as a
	// warning, not roll anything back.
	ErrPersistence = errors.New("permission change applied but not persisted")
)

// --- DTOs ---

type GrantResponse struct {
	ViewerID  string    `json:"viewer_id"`
	OwnerID   string    `json:"owner_id"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}

type AssignmentResponse struct {
	ComercialID string `json:"comercial_id"`
	ManagerID   string `json:"manager_id"`
	AssignedBy  string `json:"assigned_by"`
}

// --- Interface ---

// PermissionService is the single authorization source of truth: every call
// site (view, edit, delete) goes through CanAccess instead of re-deriving
// role checks ad hoc.
type PermissionService interface {
	CanAccess(viewer *model.User, action Action, ownerID string) bool
	HasHierarchicalPermission(viewerID, ownerID string) bool

	AssignManager(ctx context.Context, actor *model.User, comercialID, managerID string) error
	RemoveManager(ctx context.Context, actor *model.User, comercialID string) error
	GrantVisibility(ctx context.Context, actor *model.User, ownerID, viewerID string) error
	RevokeVisibility(ctx context.Context, actor *model.User, ownerID, viewerID string) error
	SetDeletePermission(ctx context.Context, actor *model.User, userID string, canDelete bool) error

	ListGrants() []GrantResponse
	ListManagerAssignments() []AssignmentResponse
	ListDeletePermissions() map[string]bool

	// CleanupUser purges a deleted user from every relation. Called by the
	// user service as part of account deletion; not admin-gated itself.
	CleanupUser(ctx context.Context, userID string) error
}

// --- Implementation ---

type grantMeta struct {
	grantedBy string
	grantedAt time.Time
}

type assignmentMeta struct {
	managerID  string
	assignedBy string
}

type permissionService struct {
	mu          sync.RWMutex
	managers    map[string]assignmentMeta       // comercialID -> manager
	grants      map[string]map[string]grantMeta // viewerID -> ownerID -> meta
	deletePerms map[string]bool                 // userID -> can delete

	userRepo repository.UserRepository
	permRepo repository.PermissionRepository
	audit    repository.AuditRepository
}

// NewPermissionService loads the current relations into memory. Mutations
// are applied to the snapshot first and persisted afterwards; reads always
// observe the most recently applied write.
func NewPermissionService(ctx context.Context, userRepo repository.UserRepository, permRepo repository.PermissionRepository, audit repository.AuditRepository) (PermissionService, error) {
	s := &permissionService{
		managers:    make(map[string]assignmentMeta),
		grants:      make(map[string]map[string]grantMeta),
		deletePerms: make(map[string]bool),
		userRepo:    userRepo,
		permRepo:    permRepo,
		audit:       audit,
	}

	assignments, err := permRepo.LoadAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manager assignments: %w", err)
	}
	for _, a := range assignments {
		s.managers[a.ComercialID] = assignmentMeta{managerID: a.ManagerID, assignedBy: a.AssignedBy}
	}

	grants, err := permRepo.LoadGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load visibility grants: %w", err)
	}
	for _, g := range grants {
		if s.grants[g.ViewerID] == nil {
			s.grants[g.ViewerID] = make(map[string]grantMeta)
		}
		s.grants[g.ViewerID][g.OwnerID] = grantMeta{grantedBy: g.GrantedBy, grantedAt: g.CreatedAt}
	}

	perms, err := permRepo.LoadDeletePermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load delete permissions: %w", err)
	}
	for _, p := range perms {
		s.deletePerms[p.UserID] = p.CanDelete
	}

	return s, nil
}

// --- Queries ---

// CanAccess decides whether viewer may perform action on contacts owned by
// ownerID. Pure query over the current snapshot; fail-closed.
func (s *permissionService) CanAccess(viewer *model.User, action Action, ownerID string) bool {
	if viewer == nil {
		return false
	}
	if viewer.IsAdmin() {
		return true
	}
	if viewer.Role != model.RoleComercial {
		return false
	}

	viewerID := viewer.ID.String()
	switch action {
	case ActionDelete:
		// The delete flag is independent of the owner: a comercial with the
		// flag may delete any contact they can otherwise see, one without it
		// may delete none, not even their own.
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.deletePerms[viewerID]
	case ActionEdit:
		// Managerial visibility does not confer edit rights.
		return ownerID == viewerID
	case ActionView:
		return ownerID == viewerID || s.HasHierarchicalPermission(viewerID, ownerID)
	default:
		return false
	}
}

// HasHierarchicalPermission reports whether viewerID may see ownerID's
// contacts through an explicit grant or a direct manager assignment. The
// relation is one hop deep: if A manages B and B manages C, A does not see
// C's contacts through the chain.
func (s *permissionService) HasHierarchicalPermission(viewerID, ownerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if owners, ok := s.grants[viewerID]; ok {
		if _, granted := owners[ownerID]; granted {
			return true
		}
	}
	if a, ok := s.managers[ownerID]; ok && a.managerID == viewerID {
		return true
	}
	return false
}

// --- Mutators ---

func (s *permissionService) AssignManager(ctx context.Context, actor *model.User, comercialID, managerID string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}
	if comercialID == managerID {
		return ErrInvalidAssignment
	}
	if err := s.requireActiveComercial(ctx, comercialID); err != nil {
		return err
	}
	if err := s.requireActiveComercial(ctx, managerID); err != nil {
		return err
	}

	actorID := actor.ID.String()
	s.mu.Lock()
	prev, existed := s.managers[comercialID]
	s.managers[comercialID] = assignmentMeta{managerID: managerID, assignedBy: actorID}
	s.mu.Unlock()

	if existed && prev.managerID == managerID {
		return nil // re-assigning the same manager is a no-op
	}

	s.record(ctx, actor, model.ActionAssignManager, comercialID, map[string]string{
		"comercial_id": comercialID,
		"manager_id":   managerID,
	})

	return s.persist(s.permRepo.SaveAssignment(ctx, &model.ManagerAssignment{
		ComercialID: comercialID,
		ManagerID:   managerID,
		AssignedBy:  actorID,
	}))
}

func (s *permissionService) RemoveManager(ctx context.Context, actor *model.User, comercialID string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}

	s.mu.Lock()
	_, existed := s.managers[comercialID]
	delete(s.managers, comercialID)
	s.mu.Unlock()

	if !existed {
		return nil // clearing a missing assignment is not an error
	}

	s.record(ctx, actor, model.ActionRemoveManager, comercialID, nil)
	return s.persist(s.permRepo.DeleteAssignment(ctx, comercialID))
}

func (s *permissionService) GrantVisibility(ctx context.Context, actor *model.User, ownerID, viewerID string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}
	if ownerID == viewerID {
		return ErrSelfGrant
	}

	actorID := actor.ID.String()
	now := time.Now()

	s.mu.Lock()
	if s.grants[viewerID] == nil {
		s.grants[viewerID] = make(map[string]grantMeta)
	}
	_, existed := s.grants[viewerID][ownerID]
	if !existed {
		s.grants[viewerID][ownerID] = grantMeta{grantedBy: actorID, grantedAt: now}
	}
	s.mu.Unlock()

	if existed {
		return nil // set semantics: re-granting is idempotent
	}

	s.record(ctx, actor, model.ActionGrantVisibility, ownerID, map[string]string{
		"viewer_id": viewerID,
		"owner_id":  ownerID,
	})

	return s.persist(s.permRepo.SaveGrant(ctx, &model.VisibilityGrant{
		ViewerID:  viewerID,
		OwnerID:   ownerID,
		GrantedBy: actorID,
	}))
}

func (s *permissionService) RevokeVisibility(ctx context.Context, actor *model.User, ownerID, viewerID string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}

	s.mu.Lock()
	owners, ok := s.grants[viewerID]
	_, existed := owners[ownerID]
	if ok {
		delete(owners, ownerID)
		if len(owners) == 0 {
			delete(s.grants, viewerID)
		}
	}
	s.mu.Unlock()

	if !existed {
		return nil
	}

	s.record(ctx, actor, model.ActionRevokeVisibility, ownerID, map[string]string{
		"viewer_id": viewerID,
		"owner_id":  ownerID,
	})
	return s.persist(s.permRepo.DeleteGrant(ctx, viewerID, ownerID))
}

func (s *permissionService) SetDeletePermission(ctx context.Context, actor *model.User, userID string, canDelete bool) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return ErrUnknownUser
	}

	s.mu.Lock()
	s.deletePerms[userID] = canDelete
	s.mu.Unlock()

	s.record(ctx, actor, model.ActionSetDeletePermission, userID, map[string]any{
		"user_id":    userID,
		"can_delete": canDelete,
	})

	return s.persist(s.permRepo.SaveDeletePermission(ctx, &model.DeletePermission{
		UserID:    userID,
		CanDelete: canDelete,
		UpdatedBy: actor.ID.String(),
	}))
}

// --- Enumerations ---

func (s *permissionService) ListGrants() []GrantResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]GrantResponse, 0)
	for viewerID, owners := range s.grants {
		for ownerID, meta := range owners {
			res = append(res, GrantResponse{
				ViewerID:  viewerID,
				OwnerID:   ownerID,
				GrantedBy: meta.grantedBy,
				GrantedAt: meta.grantedAt,
			})
		}
	}
	return res
}

func (s *permissionService) ListManagerAssignments() []AssignmentResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]AssignmentResponse, 0, len(s.managers))
	for comercialID, meta := range s.managers {
		res = append(res, AssignmentResponse{
			ComercialID: comercialID,
			ManagerID:   meta.managerID,
			AssignedBy:  meta.assignedBy,
		})
	}
	return res
}

func (s *permissionService) ListDeletePermissions() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]bool, len(s.deletePerms))
	for userID, canDelete := range s.deletePerms {
		res[userID] = canDelete
	}
	return res
}

// --- Lifecycle ---

func (s *permissionService) CleanupUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.managers, userID)
	for comercialID, meta := range s.managers {
		if meta.managerID == userID {
			delete(s.managers, comercialID)
		}
	}
	delete(s.grants, userID)
	for viewerID, owners := range s.grants {
		delete(owners, userID)
		if len(owners) == 0 {
			delete(s.grants, viewerID)
		}
	}
	delete(s.deletePerms, userID)
	s.mu.Unlock()

	return s.persist(s.permRepo.PurgeUser(ctx, userID))
}

// --- Helpers ---

func (s *permissionService) requireActiveComercial(ctx context.Context, id string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return ErrUnknownUser
	}
	if user.Role != model.RoleComercial || !user.Activo {
		return ErrUnknownUser
	}
	return nil
}

// persist wraps a repository write failure as ErrPersistence: the in-memory
// effect stands, the caller just learns that durable state lags behind.
func (s *permissionService) persist(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// record appends an audit entry; audit failures are logged, never fatal.
func (s *permissionService) record(ctx context.Context, actor *model.User, action, entityID string, details any) {
	if s.audit == nil {
		return
	}
	payload := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:   &actorID,
		Action:   action,
		EntityID: entityID,
		Details:  payload,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
