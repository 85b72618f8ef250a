package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"order-workflow/internal/app"
	"order-workflow/internal/apperror"
	"order-workflow/internal/authz"
	"order-workflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "inicia sesión con email y contraseña, o con un token de Microsoft",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"PEDIDOS_PASSWORD"}},
				&cli.StringFlag{Name: "token", Usage: "token recibido tras el inicio con Microsoft"},
			},
			Action: login,
		},
		{
			Name:  "login-url",
			Usage: "muestra la URL de inicio de sesión con Microsoft",
			Action: func(c *cli.Context) error {
				ctrl, err := controller(c)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, ctrl.LoginURL())
				return nil
			},
		},
		{
			Name:  "logout",
			Usage: "cierra la sesión",
			Action: func(c *cli.Context) error {
				ctrl, err := restored(c)
				if err != nil {
					return err
				}
				return ctrl.Logout(c.Context)
			},
		},
		{
			Name:   "whoami",
			Usage:  "muestra el usuario de la sesión",
			Action: withSession(whoami),
		},
		{
			Name:  "list",
			Usage: "lista los pedidos visibles para tu rol",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "estado", Usage: "0..3 o todos (solo admin)"},
				&cli.StringFlag{Name: "prioridad"},
				&cli.StringFlag{Name: "q", Usage: "busca en código, cliente y descripción"},
			},
			Action: withSession(list),
		},
		{
			Name:      "show",
			Usage:     "muestra un pedido y sus productos",
			ArgsUsage: "ID",
			Action:    withSession(show),
		},
		{
			Name:  "create",
			Usage: "crea un pedido",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "cliente", Required: true},
				&cli.StringFlag{Name: "direccion", Required: true},
				&cli.StringFlag{Name: "telefono"},
				&cli.StringFlag{Name: "descripcion"},
				&cli.StringFlag{Name: "prioridad", Value: string(model.PriorityMedium)},
				&cli.StringFlag{Name: "notas"},
				&cli.StringSliceFlag{Name: "producto", Usage: "nombre:cantidad[:unidad], repetible"},
			},
			Action: withSession(create),
		},
		{
			Name:      "edit",
			Usage:     "modifica un pedido en preparación",
			ArgsUsage: "ID",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "cliente"},
				&cli.StringFlag{Name: "direccion"},
				&cli.StringFlag{Name: "telefono"},
				&cli.StringFlag{Name: "descripcion"},
				&cli.StringFlag{Name: "prioridad"},
				&cli.StringFlag{Name: "notas"},
			},
			Action: withSession(edit),
		},
		{
			Name:      "advance",
			Usage:     "avanza el pedido al siguiente estado",
			ArgsUsage: "ID",
			Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
				return ctrl.Advance(c.Context, c.Args().First())
			}),
		},
		{
			Name:      "assign",
			Usage:     "asigna un transportista",
			ArgsUsage: "ID TRANSPORTISTA_ID",
			Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
				if c.Args().Len() != 2 {
					return apperror.Validation("uso: pedidos assign ID TRANSPORTISTA_ID")
				}
				return ctrl.AssignCarrier(c.Context, c.Args().Get(0), c.Args().Get(1))
			}),
		},
		{
			Name:   "carriers",
			Usage:  "lista los transportistas activos",
			Action: withSession(carriers),
		},
		{
			Name:      "checklist",
			Usage:     "guarda la checklist de transporte",
			ArgsUsage: "ID",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "mercancia"},
				&cli.BoolFlag{Name: "estado"},
				&cli.BoolFlag{Name: "documentacion"},
			},
			Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
				return ctrl.UpdateChecklist(c.Context, c.Args().First(), model.Checklist{
					GoodsOK:     c.Bool("mercancia"),
					ConditionOK: c.Bool("estado"),
					DocsOK:      c.Bool("documentacion"),
				})
			}),
		},
		{
			Name:      "finalize",
			Usage:     "pasa el pedido al historial",
			ArgsUsage: "ID",
			Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
				return ctrl.Finalize(c.Context, c.Args().First())
			}),
		},
		{
			Name:      "delete",
			Usage:     "elimina un pedido en preparación",
			ArgsUsage: "ID",
			Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
				return ctrl.Delete(c.Context, c.Args().First())
			}),
		},
		{
			Name:  "item",
			Usage: "gestiona los productos de un pedido",
			Subcommands: []*cli.Command{
				{
					Name:      "add",
					ArgsUsage: "ID nombre:cantidad[:unidad]",
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						item, err := parseItem(c.Args().Get(1))
						if err != nil {
							return err
						}
						return ctrl.AddItem(c.Context, c.Args().Get(0), item)
					}),
				},
				{
					Name:      "prepared",
					Usage:     "fija la cantidad preparada (vacío la borra)",
					ArgsUsage: "ID PRODUCTO_ID [CANTIDAD]",
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						qty, err := parseOptionalQty(c.Args().Get(2))
						if err != nil {
							return err
						}
						return ctrl.SetPreparedQty(c.Context, c.Args().Get(0), c.Args().Get(1), qty)
					}),
				},
				{
					Name:      "rm",
					ArgsUsage: "ID PRODUCTO_ID",
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						return ctrl.DeleteItem(c.Context, c.Args().Get(0), c.Args().Get(1))
					}),
				},
			},
		},
		{
			Name:      "upload",
			Usage:     "adjunta un PDF al pedido",
			ArgsUsage: "ID FICHERO.pdf",
			Action:    withSession(upload),
		},
		{
			Name:      "export",
			Usage:     "descarga la hoja del pedido",
			ArgsUsage: "ID",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv o xlsx"},
				&cli.StringFlag{Name: "out", Usage: "directorio de destino"},
			},
			Action: withSession(export),
		},
		{
			Name:   "history",
			Usage:  "lista los pedidos finalizados",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.StringFlag{Name: "prioridad"}},
			Action: withSession(history),
		},
		{
			Name:   "dashboard",
			Usage:  "resumen por estado (admin)",
			Action: withView(authz.ViewDashboard, dashboard),
		},
		{
			Name:   "pipeline",
			Usage:  "pedidos agrupados por estado (admin)",
			Action: withView(authz.ViewPipeline, pipeline),
		},
		{
			Name:  "users",
			Usage: "administración de usuarios (admin)",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Action: withView(authz.ViewUsers, users),
				},
				{
					Name: "create",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "email", Required: true},
						&cli.StringFlag{Name: "nombre", Required: true},
						&cli.StringFlag{Name: "rol", Required: true},
						&cli.StringFlag{Name: "password"},
					},
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						_, err := ctrl.CreateUser(c.Context, model.CreateUserRequest{
							Email:    c.String("email"),
							Name:     c.String("nombre"),
							Role:     model.Role(c.String("rol")),
							Password: c.String("password"),
						})
						return err
					}),
				},
				{
					Name:      "activate",
					ArgsUsage: "ID",
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						return ctrl.SetUserActive(c.Context, c.Args().First(), true)
					}),
				},
				{
					Name:      "deactivate",
					ArgsUsage: "ID",
					Action: withSession(func(c *cli.Context, ctrl *app.Controller) error {
						return ctrl.SetUserActive(c.Context, c.Args().First(), false)
					}),
				},
			},
		},
		{
			Name:   "log",
			Usage:  "registro de actividad (admin)",
			Action: withView(authz.ViewActivity, activity),
		},
	}
}

// withSession restores the saved session, runs fn and prints the resulting notification.
func withSession(fn func(c *cli.Context, ctrl *app.Controller) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctrl, err := restored(c)
		if err != nil {
			return err
		}
		if err := fn(c, ctrl); err != nil {
			return err
		}
		if state := ctrl.State(); state != nil {
			if n, ok := state.Notification(); ok {
				fmt.Fprintln(c.App.Writer, n.Message)
			}
		}
		return nil
	}
}

// withView opens view first, so roles without access get an error instead of the order list.
func withView(view authz.View, fn func(c *cli.Context, ctrl *app.Controller) error) cli.ActionFunc {
	return withSession(func(c *cli.Context, ctrl *app.Controller) error {
		got, err := ctrl.Navigate(view)
		if err != nil {
			return err
		}
		if got != view {
			return apperror.NotAuthorized("Tu rol no tiene acceso a " + string(view))
		}
		return fn(c, ctrl)
	})
}

func login(c *cli.Context) error {
	ctrl, err := controller(c)
	if err != nil {
		return err
	}
	var state *app.State
	if token := c.String("token"); token != "" {
		state, err = ctrl.LoginWithToken(c.Context, token)
	} else {
		state, err = ctrl.Login(c.Context, c.String("email"), c.String("password"))
	}
	if err != nil {
		return err
	}
	id := state.Identity()
	fmt.Fprintf(c.App.Writer, "Sesión iniciada como %s (%s)\n", id.Name, roleLabel(id.Role))
	return nil
}

func whoami(c *cli.Context, ctrl *app.Controller) error {
	id := ctrl.State().Identity()
	fmt.Fprintf(c.App.Writer, "%s <%s> %s\n", id.Name, id.Email, roleLabel(id.Role))
	return nil
}

func list(c *cli.Context, ctrl *app.Controller) error {
	var f app.Filter
	switch raw := c.String("estado"); raw {
	case "", "todos":
	default:
		stage, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.Validation("estado debe ser 0..3 o todos")
		}
		f.Stage = &stage
	}
	f.Priority = model.Priority(c.String("prioridad"))
	f.Search = c.String("q")
	if err := ctrl.SetFilter(f); err != nil {
		return err
	}
	return renderOrders(c.App.Writer, ctrl.VisibleOrders())
}

func show(c *cli.Context, ctrl *app.Controller) error {
	id := c.Args().First()
	for _, o := range ctrl.State().Orders() {
		if o.ID == id || o.Code == id {
			return renderOrder(c.App.Writer, &o)
		}
	}
	return apperror.NotFound("Pedido no encontrado")
}

func create(c *cli.Context, ctrl *app.Controller) error {
	draft := model.OrderDraft{
		Client:      c.String("cliente"),
		Address:     c.String("direccion"),
		Phone:       c.String("telefono"),
		Description: c.String("descripcion"),
		Priority:    model.Priority(c.String("prioridad")),
		Notes:       c.String("notas"),
	}
	for _, raw := range c.StringSlice("producto") {
		item, err := parseItem(raw)
		if err != nil {
			return err
		}
		draft.Products = append(draft.Products, item)
	}
	order, err := ctrl.CreateOrder(c.Context, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s\n", order.Code, order.ID)
	return nil
}

func edit(c *cli.Context, ctrl *app.Controller) error {
	var patch model.OrderPatch
	set := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	patch.Client = set("cliente")
	patch.Address = set("direccion")
	patch.Phone = set("telefono")
	patch.Description = set("descripcion")
	patch.Notes = set("notas")
	if p := set("prioridad"); p != nil {
		priority := model.Priority(*p)
		patch.Priority = &priority
	}
	if patch.Empty() {
		return apperror.Validation("Nada que modificar")
	}
	return ctrl.UpdateOrder(c.Context, c.Args().First(), patch)
}

func carriers(c *cli.Context, ctrl *app.Controller) error {
	return renderUsers(c.App.Writer, ctrl.State().Carriers())
}

func upload(c *cli.Context, ctrl *app.Controller) error {
	path := c.Args().Get(1)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ctrl.UploadDocument(c.Context, c.Args().Get(0), filepath.Base(path), f)
}

func export(c *cli.Context, ctrl *app.Controller) error {
	name, data, err := ctrl.Export(c.Context, c.Args().First(), c.String("format"))
	if err != nil {
		return err
	}
	path := filepath.Join(c.String("out"), filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func history(c *cli.Context, ctrl *app.Controller) error {
	if err := ctrl.SetFilter(app.Filter{Priority: model.Priority(c.String("prioridad")), Search: c.String("q")}); err != nil {
		return err
	}
	return renderHistory(c.App.Writer, ctrl.VisibleHistory())
}

func dashboard(c *cli.Context, ctrl *app.Controller) error {
	return renderDashboard(c.App.Writer, ctrl.Dashboard())
}

func pipeline(c *cli.Context, ctrl *app.Controller) error {
	return renderPipeline(c.App.Writer, ctrl.Pipeline())
}

func users(c *cli.Context, ctrl *app.Controller) error {
	return renderUsers(c.App.Writer, ctrl.Users())
}

func activity(c *cli.Context, ctrl *app.Controller) error {
	return renderLog(c.App.Writer, ctrl.State().Log())
}

// parseItem reads "nombre:cantidad[:unidad]". The unit defaults to unidades.
func parseItem(raw string) (model.ProductDraft, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return model.ProductDraft{}, apperror.Newf(apperror.KindValidation, "producto %q: usa nombre:cantidad[:unidad]", raw)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return model.ProductDraft{}, apperror.Newf(apperror.KindValidation, "producto %q: cantidad inválida", raw)
	}
	item := model.ProductDraft{Name: strings.TrimSpace(parts[0]), RequestedQty: qty, Unit: model.UnitUnits}
	if len(parts) == 3 {
		item.Unit = model.Unit(strings.TrimSpace(parts[2]))
	}
	return item, nil
}

func parseOptionalQty(raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.NullDecimal{}, apperror.Newf(apperror.KindValidation, "cantidad %q inválida", raw)
	}
	return decimal.NewNullDecimal(qty), nil
}
