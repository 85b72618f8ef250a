package authz

import (
	"fmt"

	"order-workflow/internal/model"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
)

// View はクライアントの画面ID
type View string

const (
	ViewDashboard View = "dashboard"
	ViewOrders    View = "pedidos"
	ViewPipeline  View = "pipeline"
	ViewHistory   View = "historial"
	ViewUsers     View = "usuarios"
	ViewActivity  View = "actividad"
)

// Views lists every view in navigation order.
var Views = []View{ViewDashboard, ViewOrders, ViewPipeline, ViewHistory, ViewUsers, ViewActivity}

// DefaultView is where restricted navigation lands.
const DefaultView = ViewOrders

// API resources and actions.
const (
	ResourceOrders    = "pedidos"
	ResourceItems     = "productos"
	ResourceDocuments = "archivos"
	ResourceHistory   = "historial"
	ResourceUsers     = "usuarios"
	ResourceCarriers  = "transportistas"
	ResourceActivity  = "actividad"

	ActionRead      = "read"
	ActionCreate    = "create"
	ActionWrite     = "write"
	ActionAdvance   = "advance"
	ActionAssign    = "assign"
	ActionChecklist = "checklist"
	ActionFinalize  = "finalize"
	ActionDelete    = "delete"
	ActionExport    = "export"
	actionOpen      = "open"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// capabilities はロールごとの権限表（画面とAPIリソース）
var capabilities = [][]string{
	{string(model.RoleAdmin), "*", "*"},

	{string(model.RoleWarehouse), viewObject(ViewOrders), actionOpen},
	{string(model.RoleWarehouse), viewObject(ViewHistory), actionOpen},
	{string(model.RoleLogistics), viewObject(ViewOrders), actionOpen},
	{string(model.RoleLogistics), viewObject(ViewHistory), actionOpen},
	{string(model.RoleCarrier), viewObject(ViewOrders), actionOpen},
	{string(model.RoleCarrier), viewObject(ViewHistory), actionOpen},
	{string(model.RoleOffice), viewObject(ViewOrders), actionOpen},
	{string(model.RoleOffice), viewObject(ViewHistory), actionOpen},

	{string(model.RoleWarehouse), ResourceOrders, ActionRead},
	{string(model.RoleWarehouse), ResourceOrders, ActionCreate},
	{string(model.RoleWarehouse), ResourceOrders, ActionWrite},
	{string(model.RoleWarehouse), ResourceOrders, ActionAdvance},
	{string(model.RoleWarehouse), ResourceOrders, ActionDelete},
	{string(model.RoleWarehouse), ResourceOrders, ActionExport},
	{string(model.RoleWarehouse), ResourceItems, "*"},
	{string(model.RoleWarehouse), ResourceDocuments, "*"},
	{string(model.RoleWarehouse), ResourceHistory, ActionRead},

	{string(model.RoleLogistics), ResourceOrders, ActionRead},
	{string(model.RoleLogistics), ResourceOrders, ActionAdvance},
	{string(model.RoleLogistics), ResourceOrders, ActionAssign},
	{string(model.RoleLogistics), ResourceOrders, ActionExport},
	{string(model.RoleLogistics), ResourceItems, ActionRead},
	{string(model.RoleLogistics), ResourceDocuments, ActionRead},
	{string(model.RoleLogistics), ResourceHistory, ActionRead},
	{string(model.RoleLogistics), ResourceCarriers, ActionRead},

	{string(model.RoleCarrier), ResourceOrders, ActionRead},
	{string(model.RoleCarrier), ResourceOrders, ActionAdvance},
	{string(model.RoleCarrier), ResourceOrders, ActionChecklist},
	{string(model.RoleCarrier), ResourceOrders, ActionExport},
	{string(model.RoleCarrier), ResourceItems, ActionRead},
	{string(model.RoleCarrier), ResourceDocuments, ActionRead},
	{string(model.RoleCarrier), ResourceHistory, ActionRead},

	{string(model.RoleOffice), ResourceOrders, ActionRead},
	{string(model.RoleOffice), ResourceOrders, ActionAdvance},
	{string(model.RoleOffice), ResourceOrders, ActionFinalize},
	{string(model.RoleOffice), ResourceOrders, ActionExport},
	{string(model.RoleOffice), ResourceItems, ActionRead},
	{string(model.RoleOffice), ResourceDocuments, "*"},
	{string(model.RoleOffice), ResourceHistory, ActionRead},
}

// Authorizer は権限表を評価する
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New は新しいAuthorizerを作成
func New() (*Authorizer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(capabilities); err != nil {
		return nil, fmt.Errorf("failed to load capability table: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// MustNew is New for static wiring; the table is compiled in, so failure is a programming error.
func MustNew() *Authorizer {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
}

// Can はロールがリソースに対してアクションを実行できるか判定
func (a *Authorizer) Can(role model.Role, resource, action string) (bool, error) {
	allowed, err := a.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}

// CanOpen reports whether role may open view.
func (a *Authorizer) CanOpen(role model.Role, view View) bool {
	allowed, err := a.Can(role, viewObject(view), actionOpen)
	return err == nil && allowed
}

// Resolve returns view if role may open it, otherwise DefaultView.
func (a *Authorizer) Resolve(role model.Role, view View) View {
	if a.CanOpen(role, view) {
		return view
	}
	return DefaultView
}

// VisibleViews は表示可能な画面一覧を返す
func (a *Authorizer) VisibleViews(role model.Role) []View {
	var out []View
	for _, v := range Views {
		if a.CanOpen(role, v) {
			out = append(out, v)
		}
	}
	return out
}

func viewObject(v View) string {
	return "view:" + string(v)
}
