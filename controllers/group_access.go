package controller

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"gpodo/cache"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

// groupStore loads groups through the context cache. It is shared by
// every controller that gates on group capabilities.
type groupStore struct {
	DB    *gorm.DB
	Cache cache.Cache
	TTL   time.Duration
}

func newGroupStore(db *gorm.DB, c cache.Cache, ttl time.Duration) groupStore {
	if c == nil {
		c = cache.NoopCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return groupStore{DB: db, Cache: c, TTL: ttl}
}

// groupAccess is a group seen by one viewer.
type groupAccess struct {
	Group    *models.Group
	Member   *models.GroupMember
	Phase    lifecycle.Phase
	PhaseErr error
	Caps     lifecycle.Capabilities
}

func (s groupStore) loadGroup(ctx context.Context, groupID uint) (*models.Group, error) {
	var group models.Group
	key := cache.GroupContextKey(groupID)
	if found, err := s.Cache.GetJSON(ctx, key, &group); err == nil && found {
		return &group, nil
	}

	if err := s.DB.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, key, group, s.TTL); err != nil {
		utils.LogError("group_cache_set", err, map[string]interface{}{"group_id": groupID})
	}
	return &group, nil
}

func (s groupStore) loadMember(ctx context.Context, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	err := s.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// access evaluates the viewer's capabilities. A stored phase outside the
// catalog is reported through PhaseErr and evaluated as PhaseUnknown.
func (s groupStore) access(ctx context.Context, groupID, viewerID uint) (*groupAccess, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var member *models.GroupMember
	if viewerID != 0 {
		if member, err = s.loadMember(ctx, groupID, viewerID); err != nil {
			return nil, err
		}
	}

	phase, phaseErr := lifecycle.ParsePhase(group.CurrentPhase)
	if phaseErr != nil {
		utils.LogError("unknown_group_phase", phaseErr, map[string]interface{}{
			"group_id": group.ID,
			"phase":    group.CurrentPhase,
		})
	}

	view := lifecycle.GroupView{
		ID:          group.ID,
		CreatorID:   group.CreatorID,
		Visibility:  group.Visibility,
		Phase:       phase,
		MemberCount: group.MemberCount,
		MaxMembers:  group.MaxMembers,
	}
	var mv *lifecycle.MemberView
	if member != nil {
		mv = &lifecycle.MemberView{Role: member.Role, Status: member.Status}
	}

	return &groupAccess{
		Group:    group,
		Member:   member,
		Phase:    phase,
		PhaseErr: phaseErr,
		Caps:     lifecycle.Evaluate(viewerID, view, mv),
	}, nil
}

// invalidate drops cached views after a write. Failures only cost
// freshness until the TTL runs out.
func (s groupStore) invalidate(ctx context.Context, groupID uint) {
	if err := cache.InvalidateGroup(ctx, s.Cache, groupID); err != nil {
		utils.LogError("group_cache_invalidate", err, map[string]interface{}{"group_id": groupID})
	}
}
