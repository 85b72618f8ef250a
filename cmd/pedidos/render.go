package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"order-workflow/internal/app"
	"order-workflow/internal/model"
	"order-workflow/internal/workflow"
)

const timeLayout = "2006-01-02 15:04"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func roleLabel(r model.Role) string {
	if meta, ok := workflow.RoleInfo(r); ok {
		return meta.Label
	}
	return string(r)
}

func priorityLabel(p model.Priority) string {
	if meta, ok := workflow.PriorityInfo(p); ok {
		return meta.Label
	}
	return string(p)
}

func renderOrders(w io.Writer, orders []model.Order) error {
	tw := table(w)
	fmt.Fprintln(tw, "CÓDIGO\tCLIENTE\tESTADO\tPRIORIDAD\tTRANSPORTISTA\tID")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Code, o.Client, workflow.StageLabel(o.Stage), priorityLabel(o.Priority), o.AssignedName, o.ID)
	}
	return tw.Flush()
}

func renderOrder(w io.Writer, o *model.Order) error {
	tw := table(w)
	fmt.Fprintf(tw, "Código:\t%s\n", o.Code)
	fmt.Fprintf(tw, "Cliente:\t%s\n", o.Client)
	fmt.Fprintf(tw, "Dirección:\t%s\n", o.Address)
	fmt.Fprintf(tw, "Teléfono:\t%s\n", o.Phone)
	fmt.Fprintf(tw, "Estado:\t%s\n", workflow.StageLabel(o.Stage))
	fmt.Fprintf(tw, "Prioridad:\t%s\n", priorityLabel(o.Priority))
	if o.Description != "" {
		fmt.Fprintf(tw, "Descripción:\t%s\n", o.Description)
	}
	if o.Notes != "" {
		fmt.Fprintf(tw, "Notas:\t%s\n", o.Notes)
	}
	if o.AssignedName != "" {
		fmt.Fprintf(tw, "Transportista:\t%s\n", o.AssignedName)
	}
	fmt.Fprintf(tw, "Creado:\t%s\n", o.CreatedAt.Format(timeLayout))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = table(w)
	fmt.Fprintln(tw, "PRODUCTO\tSOLICITADA\tPREPARADA\tUNIDAD\tID")
	for _, p := range o.Products {
		prepared := "-"
		if p.PreparedQty.Valid {
			prepared = p.PreparedQty.Decimal.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.RequestedQty.String(), prepared, p.Unit, p.ID)
	}
	return tw.Flush()
}

func renderHistory(w io.Writer, records []model.HistoryRecord) error {
	tw := table(w)
	fmt.Fprintln(tw, "CÓDIGO\tCLIENTE\tPRIORIDAD\tFECHA ENTREGA\tENTREGADO POR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Code, r.Client, priorityLabel(r.Priority), r.DeliveredAt.Format(timeLayout), r.DeliveredBy)
	}
	return tw.Flush()
}

func renderUsers(w io.Writer, users []model.User) error {
	tw := table(w)
	fmt.Fprintln(tw, "NOMBRE\tEMAIL\tROL\tACTIVO\tID")
	for _, u := range users {
		active := "no"
		if u.Active {
			active = "sí"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Name, u.Email, roleLabel(u.Role), active, u.ID)
	}
	return tw.Flush()
}

func renderLog(w io.Writer, entries []model.ActivityLogEntry) error {
	tw := table(w)
	fmt.Fprintln(tw, "FECHA\tUSUARIO\tACCIÓN\tDETALLE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(timeLayout), e.User, e.Action, e.Detail)
	}
	return tw.Flush()
}

func renderDashboard(w io.Writer, d app.Dashboard) error {
	tw := table(w)
	for _, s := range d.Stages {
		fmt.Fprintf(tw, "%s\t%d\n", s.Stage.Label, s.Count)
	}
	fmt.Fprintf(tw, "Activos\t%d\n", d.Active)
	fmt.Fprintf(tw, "Urgentes\t%d\n", d.Urgent)
	fmt.Fprintf(tw, "Completados hoy\t%d\n", d.CompletedToday)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(d.Recent) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nActividad reciente")
	return renderLog(w, d.Recent)
}

func renderPipeline(w io.Writer, columns []app.Column) error {
	for _, col := range columns {
		fmt.Fprintf(w, "== %s (%d) ==\n", col.Stage.Label, len(col.Orders))
		for _, o := range col.Orders {
			fmt.Fprintf(w, "  %s  %s  [%s]\n", o.Code, o.Client, priorityLabel(o.Priority))
		}
	}
	return nil
}
