package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/goals"
)

func runListGoals(e *env, args []string) error {
	fs := flag.NewFlagSet("goals", flag.ExitOnError)
	fs.Parse(args)

	gs, err := e.goalSvc.Goals(e.ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tTITLE\tSAVED\tTARGET\tPROGRESS\tDAYS LEFT\tMONTHLY")
	for _, g := range gs {
		mark := ""
		if g.Urgent(now) {
			mark = " !"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%%\t%d%s\t%s\n",
			g.ID, g.DueDate.Format(dateFormat), g.Title,
			g.SavedAmount.StringFixed(2), g.TargetAmount.StringFixed(2),
			g.Progress().Shift(2).StringFixed(0), g.DaysLeft(now), mark,
			g.RequiredMonthlyContribution(now).StringFixed(2))
	}
	tw.Flush()

	sum := goals.Summarize(gs)
	fmt.Printf("\n%d goal(s): saved %s of %s (%s%%)\n", sum.Count,
		sum.TotalSaved.StringFixed(2), sum.TotalTarget.StringFixed(2), sum.Progress.Shift(2).StringFixed(0))
	return nil
}

func runAddGoal(e *env, args []string) error {
	fs := flag.NewFlagSet("add-goal", flag.ExitOnError)
	title := fs.String("title", "", "Goal title")
	targetFlag := fs.String("target", "", "Target amount, e.g. 1500")
	savedFlag := fs.String("saved", "0", "Amount already saved")
	dueFlag := fs.String("due", "", "Due date, YYYY-MM-DD or RFC3339")
	category := fs.String("category", "", "savings, investment, holiday, education, home, car or other")
	note := fs.String("note", "", "Optional note")
	fs.Parse(args)

	var errs domain.ValidationErrors
	target, err := decimal.NewFromString(*targetFlag)
	if err != nil {
		errs.Add("target", "not a number: "+*targetFlag)
	}
	saved, err := decimal.NewFromString(*savedFlag)
	if err != nil {
		errs.Add("saved", "not a number: "+*savedFlag)
	}
	due, err := parseTime(*dueFlag)
	if err != nil {
		errs.Add("due", "expected YYYY-MM-DD or RFC3339: "+*dueFlag)
	}
	cat, err := domain.ParseGoalCategory(*category)
	if err != nil {
		errs.Add("category", "unknown goal category: "+*category)
	}
	if err := errs.Err(); err != nil {
		return err
	}

	g, err := e.goalSvc.AddGoal(e.ctx, goals.NewGoal{
		Title:        *title,
		TargetAmount: target,
		SavedAmount:  saved,
		DueDate:      due,
		Category:     cat,
		Note:         *note,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created goal %s (%s, %s by %s).\n", g.ID, g.Title, g.TargetAmount.StringFixed(2), g.DueDate.Format(dateFormat))
	return nil
}

func runContribute(e *env, args []string) error {
	fs := flag.NewFlagSet("contribute", flag.ExitOnError)
	id := fs.String("id", "", "Goal ID")
	amountFlag := fs.String("amount", "", "Contribution amount")
	fs.Parse(args)

	if *id == "" {
		return domain.NewValidationError("id", "--id is required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return domain.NewValidationError("amount", "not a number: "+*amountFlag)
	}
	g, err := e.goalSvc.AddContribution(e.ctx, *id, amount)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s of %s for %s.\n", g.SavedAmount.StringFixed(2), g.TargetAmount.StringFixed(2), g.Title)
	if g.Reached() {
		fmt.Println("Goal reached.")
	}
	return nil
}

func runDeleteGoal(e *env, args []string) error {
	id, err := goalIDArg("delete-goal", args)
	if err != nil {
		return err
	}
	if err := e.goalSvc.DeleteGoal(e.ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted goal %s.\n", id)
	return nil
}

func runGoalTip(e *env, args []string) error {
	id, err := goalIDArg("goal-tip", args)
	if err != nil {
		return err
	}
	s, err := e.goalSvc.Suggestion(e.ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		fmt.Println("On track, keep going.")
		return nil
	}
	fmt.Println(s.Message)
	return nil
}

func goalIDArg(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "Goal ID")
	fs.Parse(args)
	if *id == "" {
		return "", domain.NewValidationError("id", "--id is required")
	}
	return *id, nil
}
