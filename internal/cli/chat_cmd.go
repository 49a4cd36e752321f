package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/soyeahso/shopchat/internal/actions"
	"github.com/soyeahso/shopchat/internal/cart"
	"github.com/soyeahso/shopchat/internal/chat"
	"github.com/soyeahso/shopchat/internal/checkout"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/identity"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with the store assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if model == "" {
				model = rt.cfg.Chat.Model
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := &chatSession{
				rt:        rt,
				streaming: rt.cfg.StreamingEnabled(),
			}
			s.ctrl = chat.NewController(rt.api, rt.ids, chat.Options{
				Model:    model,
				Greeting: rt.cfg.Chat.Greeting,
			}, log)
			s.cache = cart.NewCache(rt.api, log)
			s.machine = checkout.NewMachine(rt.api, log)
			s.dispatch = actions.NewDispatcher(rt.api, s.ctrl, s.cache, s.machine,
				actions.SystemClipboard{}, s, s, log)

			return s.run(ctx)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "assistant model to request")

	return cmd
}

// chatSession is the interactive loop state. It doubles as the dispatcher's
// Notifier and Navigator, rendering both to the terminal.
type chatSession struct {
	rt        *runtime
	ctrl      *chat.Controller
	cache     *cart.Cache
	machine   *checkout.Machine
	dispatch  *actions.Dispatcher
	streaming bool
}

// Notify renders a transient notice.
func (s *chatSession) Notify(text string) {
	fmt.Printf("  ! %s\n", text)
}

// OpenCart renders the cart preview from the last snapshot.
func (s *chatSession) OpenCart() {
	printCart(s.cache.Snapshot())
}

func (s *chatSession) run(ctx context.Context) error {
	if err := s.ctrl.Bootstrap(ctx); err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			return err
		}
		return fmt.Errorf("starting conversation: %w", err)
	}
	if err := s.cache.Refresh(ctx); err == nil {
		fmt.Printf("[cart: %d]\n", s.cache.Count())
	}

	for _, m := range s.ctrl.Messages() {
		printMessage(m)
	}
	fmt.Println(`Type a message, or /help for commands.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, scanner, line)
			if err != nil {
				fmt.Printf("  ! %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		s.turn(ctx, line)
	}
}

// turn sends one user message and renders the reply.
func (s *chatSession) turn(ctx context.Context, text string) {
	var err error
	if s.streaming {
		fmt.Print("assistant> ")
		err = s.ctrl.SendStream(ctx, text, func(delta string) {
			fmt.Print(delta)
		})
		fmt.Println()
	} else {
		err = s.ctrl.Send(ctx, text)
		msgs := s.ctrl.Messages()
		if len(msgs) > 0 {
			printMessage(msgs[len(msgs)-1])
		}
	}
	if err != nil {
		fmt.Printf("  ! %v\n", err)
		return
	}

	s.renderTurnExtras()
}

// renderTurnExtras prints products, suggestions and the numbered action
// menu attached to the latest assistant turn.
func (s *chatSession) renderTurnExtras() {
	msgs := s.ctrl.Messages()
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		for _, p := range last.Products {
			fmt.Printf("  - %s  %.0f₫", p.Name, p.Price)
			if p.Stock > 0 {
				fmt.Printf("  (còn %d)", p.Stock)
			}
			fmt.Println()
		}
	}

	for i, a := range s.ctrl.PendingActions() {
		fmt.Printf("  [/%d] %s\n", i+1, a.Label)
	}
	if sugg := s.ctrl.Suggestions(); len(sugg) > 0 {
		fmt.Printf("  (gợi ý: %s)\n", strings.Join(sugg, " | "))
	}
}

// command handles one /-prefixed input line. Returns true to quit.
func (s *chatSession) command(ctx context.Context, scanner *bufio.Scanner, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println(`  /new           start a new conversation
  /sessions      list previous conversations
  /switch N      switch to conversation N from /sessions
  /cart          show the cart
  /clear         delete all conversation history
  /N             run suggested action N
  /quit          leave`)
		return false, nil

	case "/new":
		if err := s.ctrl.NewConversation(); err != nil {
			return false, err
		}
		msgs := s.ctrl.Messages()
		if len(msgs) > 0 {
			printMessage(msgs[0])
		}
		return false, nil

	case "/sessions":
		s.ctrl.RefreshSessions(ctx)
		sessions := s.ctrl.Sessions()
		if len(sessions) == 0 {
			fmt.Println("  (no previous conversations)")
			return false, nil
		}
		for i, sess := range sessions {
			fmt.Printf("  %d. %s (%d messages)\n", i+1, sess.Title(), sess.MessageCount)
		}
		return false, nil

	case "/switch":
		if len(fields) < 2 {
			return false, errors.New("usage: /switch N")
		}
		n, err := strconv.Atoi(fields[1])
		sessions := s.ctrl.Sessions()
		if err != nil || n < 1 || n > len(sessions) {
			return false, errors.New("pick a number from /sessions")
		}
		if err := s.ctrl.SwitchSession(ctx, sessions[n-1].SessionID); err != nil {
			return false, err
		}
		for _, m := range s.ctrl.Messages() {
			printMessage(m)
		}
		return false, nil

	case "/cart":
		if err := s.cache.Refresh(ctx); err != nil {
			return false, err
		}
		printCart(s.cache.Snapshot())
		return false, nil

	case "/clear":
		if err := s.ctrl.ClearAllHistory(ctx); err != nil {
			return false, err
		}
		fmt.Println("  History cleared.")
		msgs := s.ctrl.Messages()
		if len(msgs) > 0 {
			printMessage(msgs[0])
		}
		return false, nil
	}

	// /N runs pending action N.
	if n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "/")); err == nil {
		pending := s.ctrl.PendingActions()
		if n < 1 || n > len(pending) {
			return false, errors.New("no such action")
		}
		return false, s.runAction(ctx, scanner, pending[n-1])
	}

	return false, fmt.Errorf("unknown command %s, try /help", fields[0])
}

// runAction executes one suggested action and, for CREATE_ORDER, walks the
// checkout dialog.
func (s *chatSession) runAction(ctx context.Context, scanner *bufio.Scanner, action domain.Action) error {
	if err := s.dispatch.Execute(ctx, action); err != nil {
		return nil // already surfaced as a notice
	}

	switch action.Type {
	case domain.ActionAddToCart:
		msgs := s.ctrl.Messages()
		if len(msgs) > 0 {
			printMessage(msgs[len(msgs)-1])
		}
		fmt.Printf("  [cart: %d]\n", s.cache.Count())
	case domain.ActionCreateOrder:
		if s.machine.State() == checkout.StateReviewing {
			s.runCheckout(ctx, scanner)
		}
	}
	return nil
}

// runCheckout drives the Reviewing dialog: address, payment method, submit.
// A failed submit returns to the prompt with the draft intact.
func (s *chatSession) runCheckout(ctx context.Context, scanner *bufio.Scanner) {
	draft := s.machine.Draft()
	fmt.Println("  ── Xác nhận đơn hàng ──")
	for _, line := range draft.Items {
		fmt.Printf("  %s x%d  %.0f₫\n", line.ProductName, line.Quantity, line.Subtotal)
	}
	fmt.Printf("  Tổng cộng: %.0f₫\n", draft.TotalAmount)

	for {
		prompt := "  Địa chỉ giao hàng"
		if addr := s.machine.Draft().ShippingAddress; addr != "" {
			prompt += fmt.Sprintf(" [%s]", addr)
		}
		fmt.Print(prompt + ": ")
		if !scanner.Scan() {
			s.machine.Cancel()
			return
		}
		if addr := strings.TrimSpace(scanner.Text()); addr != "" {
			if err := s.machine.SetShippingAddress(addr); err != nil {
				fmt.Printf("  ! %v\n", err)
			}
		}

		fmt.Print("  Thanh toán (1: COD, 2: chuyển khoản) [1]: ")
		if !scanner.Scan() {
			s.machine.Cancel()
			return
		}
		if strings.TrimSpace(scanner.Text()) == "2" {
			if err := s.machine.SetPaymentMethod(domain.PaymentBankTransfer); err != nil {
				fmt.Printf("  ! %v\n", err)
			}
		}

		fmt.Print("  Đặt hàng? (y/n): ")
		if !scanner.Scan() || strings.TrimSpace(strings.ToLower(scanner.Text())) != "y" {
			s.machine.Cancel()
			fmt.Println("  Đã huỷ.")
			return
		}

		msg, err := s.machine.Submit(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrMissingAddress) {
				fmt.Println("  ! Vui lòng nhập địa chỉ giao hàng.")
			} else if fail := s.machine.FailureMessage(); fail != "" {
				fmt.Printf("  ! %s\n", fail)
			} else {
				fmt.Printf("  ! %v\n", err)
			}
			// Reviewing again: edit and resubmit, or cancel.
			continue
		}

		if msg == "" {
			msg = "Đặt hàng thành công!"
		}
		s.ctrl.AppendAssistant(msg)
		s.ctrl.ClearActions()
		printMessage(s.ctrl.Messages()[len(s.ctrl.Messages())-1])
		if err := s.cache.Refresh(ctx); err == nil {
			fmt.Printf("  [cart: %d]\n", s.cache.Count())
		}
		return
	}
}

func printMessage(m domain.Message) {
	who := "assistant"
	if m.Role == domain.RoleUser {
		who = "you"
	}
	fmt.Printf("%s> %s\n", who, m.Content)
}

func printCart(snap domain.CartSnapshot) {
	if snap.Empty() {
		fmt.Println("  Giỏ hàng trống.")
		return
	}
	for _, line := range snap.Items {
		fmt.Printf("  %s x%d  %.0f₫\n", line.ProductName, line.Quantity, line.Subtotal)
	}
	fmt.Printf("  Tổng cộng: %.0f₫ (%d sản phẩm)\n", snap.TotalPrice, snap.ItemCount())
}
